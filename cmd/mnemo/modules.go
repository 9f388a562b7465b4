package main

// Compiled-in modules. Each import registers its module with the core
// registry via init().
import (
	_ "github.com/mnemohq/mnemo/internal/cron"
	_ "github.com/mnemohq/mnemo/internal/engine"
	_ "github.com/mnemohq/mnemo/internal/gateway"
	_ "github.com/mnemohq/mnemo/modules/embedder/openai"
	_ "github.com/mnemohq/mnemo/modules/index/pgvector"
	_ "github.com/mnemohq/mnemo/modules/index/sqlite"
	_ "github.com/mnemohq/mnemo/modules/reminders/sqlite"
)
