package vikingkb

import (
	"github.com/m5stack/m5doc/internal/knowledge"
)

// SearchPath is the knowledge search endpoint
const SearchPath = "/api/knowledge/collection/search_knowledge"

const (
	denseWeight         = 0.5
	chunkDiffusionCount = 3
)

// SearchBody is the JSON body of a search_knowledge call
type SearchBody struct {
	Project        string         `json:"project"`
	Name           string         `json:"name"`
	Query          string         `json:"query"`
	Limit          int            `json:"limit"`
	PreProcessing  PreProcessing  `json:"pre_processing"`
	DenseWeight    float64        `json:"dense_weight"`
	PostProcessing PostProcessing `json:"post_processing"`
	QueryParam     *QueryParam    `json:"query_param,omitempty"`
}

type PreProcessing struct {
	NeedInstruction  bool      `json:"need_instruction"`
	ReturnTokenUsage bool      `json:"return_token_usage"`
	Messages         []Message `json:"messages"`
	Rewrite          bool      `json:"rewrite"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type PostProcessing struct {
	GetAttachmentLink   bool   `json:"get_attachment_link"`
	RerankOnlyChunk     bool   `json:"rerank_only_chunk"`
	RerankSwitch        bool   `json:"rerank_switch"`
	ChunkGroup          bool   `json:"chunk_group"`
	RerankModel         string `json:"rerank_model"`
	RetrieveCount       int    `json:"retrieve_count"`
	ChunkDiffusionCount int    `json:"chunk_diffusion_count"`
}

type QueryParam struct {
	DocFilter *knowledge.TypeFilter `json:"doc_filter"`
}

// NewSearchBody builds the request body for one leg
func NewSearchBody(cfg *Config, req knowledge.SearchRequest) *SearchBody {
	body := &SearchBody{
		Project: cfg.Project,
		Name:    cfg.Name,
		Query:   req.Query,
		Limit:   req.Limit,
		PreProcessing: PreProcessing{
			NeedInstruction:  true,
			ReturnTokenUsage: true,
			Messages: []Message{
				{Role: "system", Content: ""},
				{Role: "user", Content: req.Query},
			},
			Rewrite: false,
		},
		DenseWeight: denseWeight,
		PostProcessing: PostProcessing{
			GetAttachmentLink:   true,
			RerankOnlyChunk:     false,
			RerankSwitch:        true,
			ChunkGroup:          true,
			RerankModel:         cfg.RerankModel,
			RetrieveCount:       req.Limit * 2,
			ChunkDiffusionCount: chunkDiffusionCount,
		},
	}

	if req.Filter != nil {
		body.QueryParam = &QueryParam{DocFilter: req.Filter}
	}

	return body
}
