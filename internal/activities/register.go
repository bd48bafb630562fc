package activities

import "go.temporal.io/sdk/worker"

func Register(w worker.Worker, a *Activities) {
	w.RegisterActivity(a.ExtractTextActivity)
	w.RegisterActivity(a.ChunkTextActivity)
	w.RegisterActivity(a.EmbedChunksActivity)
	w.RegisterActivity(a.UpsertVectorsActivity)
	w.RegisterActivity(a.MarkDocReadyActivity)
	w.RegisterActivity(a.RecordIngestFailureActivity)
	w.RegisterActivity(a.DeleteNamespaceActivity)
	w.RegisterActivity(a.ListOwnerDocsActivity)
}
