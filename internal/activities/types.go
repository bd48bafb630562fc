package activities

type ExtractTextInput struct {
	DocID       string
	StoragePath string
}

type ExtractTextOutput struct {
	Text string
}

type ChunkTextInput struct {
	DocID     string
	Text      string
	ChunkSize int
}

type ChunkItem struct {
	ChunkID    string
	DocID      string
	ChunkIndex int
	Text       string
}

type ChunkTextOutput struct {
	Chunks []ChunkItem
}

type EmbedChunksInput struct {
	Operation     string
	ProviderIndex int
	Input         []ChunkItem
}

type EmbedChunksOutput struct {
	Vectors      [][]float32
	ProviderName string
	Model        string
}

type UpsertVectorsInput struct {
	Namespace string
	OwnerID   string
	Category  string
	Priority  int
	Chunks    []ChunkItem
	Vectors   [][]float32
}

type MarkDocReadyInput struct {
	DocID     string
	Namespace string
}

type RecordIngestFailureInput struct {
	DocID  string
	Reason string
}

type DeleteNamespaceInput struct {
	Namespace string
}

type ListOwnerDocsInput struct {
	OwnerID string
	OrgID   string
	// FailedOnly restricts the listing to documents that never reached
	// ready (used by retry reindexing).
	FailedOnly bool
}

type OwnerDoc struct {
	DocID       string
	OwnerID     string
	StoragePath string
	Category    string
	Priority    int
	Ready       bool
}

type ListOwnerDocsOutput struct {
	Docs []OwnerDoc
}
