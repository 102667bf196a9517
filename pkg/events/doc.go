/*
Package events provides an in-memory event broker for plugin notifications.

The plugin publishes lifecycle and decision events (agent started, stopped
and reconfigured, predictor ready or unavailable, job delayed) so that the
host or a test can observe what happened without scraping logs.

Publish never blocks the caller. The priority path publishes from the host's
job admission thread, so a full buffer or a stopped broker drops the event
instead of delaying the job.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for event := range sub {
		fmt.Println(event.Type, event.Metadata["job_id"])
	}

Events are not persisted.
*/
package events
