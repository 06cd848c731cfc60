package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.PresignActivity)
	w.RegisterActivity(a.UploadActivity)
	w.RegisterActivity(a.PreviewActivity)
	w.RegisterActivity(a.OptimizeActivity)
	w.RegisterActivity(a.ExportActivity)
	w.RegisterActivity(a.LogRunActivity)
	w.RegisterActivity(a.WriteRunSummaryActivity)
}
