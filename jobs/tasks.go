package jobs

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
)

// Observer counts job runs. *observability.Metrics satisfies it.
type Observer interface {
	ObserveJob(task string, err error)
}
