package workflows

const (
	QueryGetIngestProgress  = "getIngestProgress"
	QueryGetReindexProgress = "getReindexProgress"
)

// Reindex modes.
const (
	ReindexRetryFailed = "RETRY_FAILED"
	ReindexReembedAll  = "REEMBED_ALL"
)

type KnowledgeIngestInput struct {
	DocID       string
	OwnerID     string
	StoragePath string
	Category    string
	Priority    int

	ChunkSize                   int
	EmbedProviders              int
	PreferredEmbedProviderIndex int
	CooldownSeconds             int
}

type KnowledgeIngestProgress struct {
	DocID       string
	Namespace   string
	CurrentStep string
	Status      string
	FailReason  string
	ChunkCount  int
	Providers   []string
	Steps       map[string]string
	RetryCounts map[string]int
}

type ReindexInput struct {
	OwnerID string
	OrgID   string
	Mode    string

	ChunkSize       int
	EmbedProviders  int
	CooldownSeconds int
}

type ReindexProgress struct {
	OwnerID   string
	Mode      string
	Total     int
	Succeeded int
	Failed    int
	DocStatus map[string]string
}
