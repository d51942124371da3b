package main

import (
	"github.com/Yubo-Cao/grade-dashboard/cmd/grade-cli/cmd"
	"github.com/Yubo-Cao/grade-dashboard/lib/serviceutil"
	"github.com/Yubo-Cao/grade-dashboard/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	telemetry.InitSlog(false)
	tel, err := telemetry.SetupFromEnv(ctx, "grade-cli")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer tel.Shutdown(ctx)
	telemetry.InstrumentPerfStats(ctx)

	cmd.ExecuteContext(ctx)
}
