package als

import (
	"encoding/json"

	"github.com/rushteam/filmrec/core"
	"github.com/rushteam/filmrec/dataset"
)

// artifact 是模型产物的序列化形态。索引映射与因子一起存，
// 重训后稠密下标变化时旧产物仍能按外部 ID 寻址。
type artifact struct {
	Factors      int              `json:"factors"`
	UserFactors  [][]float64      `json:"user_factors"`
	MovieFactors [][]float64      `json:"movie_factors"`
	Index        *dataset.IndexMap `json:"index"`
}

// Encode 序列化模型为产物字节（JSON）。
func (m *Model) Encode() ([]byte, error) {
	return json.Marshal(artifact{
		Factors:      m.Factors,
		UserFactors:  m.UserFactors,
		MovieFactors: m.MovieFactors,
		Index:        m.Index,
	})
}

// Decode 从产物字节还原模型。往返后的模型对同一 (user, movie) 给出
// 与序列化前完全一致的 Score。
func Decode(data []byte) (*Model, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInternalError, "als: corrupt artifact: "+err.Error())
	}
	if a.Factors <= 0 || a.Index == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInternalError, "als: artifact missing factors or index")
	}
	a.Index.BuildLookups()
	return &Model{
		Factors:      a.Factors,
		UserFactors:  a.UserFactors,
		MovieFactors: a.MovieFactors,
		Index:        a.Index,
	}, nil
}
