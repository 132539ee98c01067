package membership

// HealthReporter is an optional interface that a Membership implementation
// may provide to report a health score. Lower is healthier; -1 means the
// implementation is not started.
type HealthReporter interface {
    HealthScore() int
}
