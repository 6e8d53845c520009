// Package runtime assembles the offline core: the pebble database, the
// named-cache store and request router, the durable sync queue with its
// retry policy, the connectivity monitor, and the cron scheduler.
//
// Example:
//
//	cfg := config.Default()
//	cfg.DataDir = "./data"
//	rt, err := runtime.Open(runtime.Options{Config: cfg}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//	client := &http.Client{Transport: rt.Router()}
package runtime
