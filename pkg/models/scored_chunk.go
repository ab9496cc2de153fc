package models

// ScoreBreakdown holds the per-signal components of a chunk's relevance
// score, before weighting.
type ScoreBreakdown struct {
	Keyword   float64 `json:"keyword"`
	Date      float64 `json:"date"`
	Number    float64 `json:"number"`
	Proximity float64 `json:"proximity"`
	Metadata  float64 `json:"metadata"`
}

// ScoredChunk pairs a chunk with its weighted relevance score.
type ScoredChunk struct {
	Chunk  *Chunk         `json:"chunk"`
	Scores ScoreBreakdown `json:"scores"`
	Total  float64        `json:"score"`
}
