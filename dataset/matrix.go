package dataset

// Matrix 是用户×电影的稀疏置信度矩阵（CSR，按用户行存储）。
// 行列都是稠密下标，外部 ID 到下标的映射见 IndexMap。
type Matrix struct {
	Users  int
	Movies int

	// CSR 三数组：RowPtr 长度为 Users+1。
	RowPtr []int
	Cols   []int
	Vals   []float64
}

// NNZ 返回非零元素个数。
func (m *Matrix) NNZ() int {
	return len(m.Vals)
}

// Row 返回第 u 行的列下标与置信度权重（共享底层切片，调用方只读）。
func (m *Matrix) Row(u int) ([]int, []float64) {
	if u < 0 || u >= m.Users {
		return nil, nil
	}
	start, end := m.RowPtr[u], m.RowPtr[u+1]
	return m.Cols[start:end], m.Vals[start:end]
}

// Transpose 返回电影×用户的转置矩阵（ALS 交替求解物品因子时使用）。
func (m *Matrix) Transpose() *Matrix {
	t := &Matrix{
		Users:  m.Movies,
		Movies: m.Users,
		RowPtr: make([]int, m.Movies+1),
		Cols:   make([]int, len(m.Cols)),
		Vals:   make([]float64, len(m.Vals)),
	}

	// 两趟计数法：先统计每列的元素数，再散射填充。
	counts := make([]int, m.Movies)
	for _, c := range m.Cols {
		counts[c]++
	}
	for i := 0; i < m.Movies; i++ {
		t.RowPtr[i+1] = t.RowPtr[i] + counts[i]
	}

	next := make([]int, m.Movies)
	copy(next, t.RowPtr[:m.Movies])
	for u := 0; u < m.Users; u++ {
		for idx := m.RowPtr[u]; idx < m.RowPtr[u+1]; idx++ {
			c := m.Cols[idx]
			pos := next[c]
			t.Cols[pos] = u
			t.Vals[pos] = m.Vals[idx]
			next[c]++
		}
	}
	return t
}

// IndexMap 是外部 ID 与稠密下标的双向映射。
// 每次构建都从同一排序键序确定性重算；映射必须随模型产物一起持久化，
// 否则重训后的稠密下标无法对应回外部 (user_id, movie_id)。
type IndexMap struct {
	// UserIDs[i] 是第 i 行对应的用户 ID（升序）。
	UserIDs []int64 `json:"user_ids"`
	// MovieIDs[j] 是第 j 列对应的电影 ID（升序）。
	MovieIDs []int64 `json:"movie_ids"`

	userIndex  map[int64]int
	movieIndex map[int64]int
}

// BuildLookups 在反序列化后重建 ID→下标反查表。
func (im *IndexMap) BuildLookups() {
	im.userIndex = make(map[int64]int, len(im.UserIDs))
	for i, id := range im.UserIDs {
		im.userIndex[id] = i
	}
	im.movieIndex = make(map[int64]int, len(im.MovieIDs))
	for j, id := range im.MovieIDs {
		im.movieIndex[id] = j
	}
}

// UserRow 返回用户的稠密行下标；不在索引中时 ok=false（冷启动信号）。
func (im *IndexMap) UserRow(userID int64) (int, bool) {
	row, ok := im.userIndex[userID]
	return row, ok
}

// MovieCol 返回电影的稠密列下标。
func (im *IndexMap) MovieCol(movieID int64) (int, bool) {
	col, ok := im.movieIndex[movieID]
	return col, ok
}

// MovieAt 返回第 j 列对应的电影 ID。
func (im *IndexMap) MovieAt(col int) int64 {
	return im.MovieIDs[col]
}
