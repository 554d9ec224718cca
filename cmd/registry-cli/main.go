package main

import (
	"registry-backend/cmd/registry-cli/commands"
	"registry-backend/lib/serviceutil"
	"registry-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "registry-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(ctx)
}
