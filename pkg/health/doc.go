/*
Package health probes plugin components in the background.

A Checker performs one check and returns a Result. A Monitor runs a checker
on Config.Interval, folds results into a Status and publishes it through
metrics.UpdateComponent, so the component shows up in the /health and
/ready responses.

A component is marked unhealthy only after Config.Retries consecutive
failures; a single success marks it healthy again. Failures inside
Config.StartPeriod are not counted.

PredictorChecker sends a fixed probe feature through a predictor. It fails
when the predictor cannot resolve the probe (module missing, call failed,
timeout) and passes on any decision, so a probe exercises the same path as
the admission hook:

	checker := health.NewPredictorChecker(pred, "probe")
	m := health.NewMonitor(metrics.ComponentPredictor, checker, health.Config{
		Interval: 30 * time.Second,
		Timeout:  2 * time.Second,
		Retries:  3,
	})
	m.Start()
	defer m.Stop()
*/
package health
