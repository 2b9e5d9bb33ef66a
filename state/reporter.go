package state

// Reporter is anything that can render itself into a status report.
type Reporter interface {
	CreateReport() (string, error)
}
