// Package bootstrap wires configuration, logging and the reconstruction
// pipeline into a runnable application.
//
// Usage:
//
//	logger, _, err := bootstrap.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
//	if err != nil {
//	    return err
//	}
//	app, err := bootstrap.NewApp(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	defer app.Shutdown()
//
//	summary, err := app.Analyze(ctx, bootstrap.AnalyzeRequest{
//	    Input:  "timeline.csv",
//	    Output: "events.json",
//	})
package bootstrap
