package embedding

import (
	"fmt"
	"strings"

	"github.com/rushteam/filmrec/core"
)

// MovieText 把电影元数据拼成编码输入文本。
// 模板与向量生成侧保持一致：标题/简介/类型/宣传语/关键词/语言。
func MovieText(m *core.MovieMetadata) string {
	if m == nil {
		return ""
	}
	parts := []string{
		fmt.Sprintf("Title: %s", m.Title),
		fmt.Sprintf("Overview: %s", m.Overview),
		fmt.Sprintf("Genres: %s", strings.Join(m.Genres, ", ")),
	}
	if m.Tagline != "" {
		parts = append(parts, fmt.Sprintf("Tagline: %s", m.Tagline))
	}
	if len(m.Keywords) > 0 {
		parts = append(parts, fmt.Sprintf("Keywords: %s", strings.Join(m.Keywords, ", ")))
	}
	if m.Language != "" {
		parts = append(parts, fmt.Sprintf("Language: %s", m.Language))
	}
	return strings.Join(parts, "\n")
}

// GenreQueryText 把类型偏好拼成冷启动检索文本。
func GenreQueryText(genres []string) string {
	return fmt.Sprintf("Movies in genres: %s. Recommend good movies.", strings.Join(genres, ", "))
}
