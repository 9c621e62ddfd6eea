package pipeline

import "strings"

// SplitIntoSections splits content into paragraph-aligned chunks of roughly
// chunkChars characters. Paragraphs are never split across chunks.
func SplitIntoSections(content string, chunkChars int) []string {
	if chunkChars <= 0 {
		chunkChars = 2000
	}

	paragraphs := strings.Split(content, "\n\n")

	var sections []string
	var current []string
	size := 0

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if size+len(para) > chunkChars && len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n\n"))
			current = []string{para}
			size = len(para)
		} else {
			current = append(current, para)
			size += len(para)
		}
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n\n"))
	}

	return sections
}

// SplitIntoN splits content into exactly n paragraph-aligned sections of
// roughly equal size. When the content has fewer than n paragraphs, the
// trailing sections repeat the last paragraph group rather than being empty.
func SplitIntoN(content string, n int) []string {
	if n <= 1 {
		return []string{strings.TrimSpace(content)}
	}

	var paragraphs []string
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" {
			paragraphs = append(paragraphs, para)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}
	if len(paragraphs) <= n {
		// One paragraph per section; pad by reusing the final paragraph so
		// every chapter still has source material to expand.
		sections := make([]string, n)
		for i := range sections {
			if i < len(paragraphs) {
				sections[i] = paragraphs[i]
			} else {
				sections[i] = paragraphs[len(paragraphs)-1]
			}
		}
		return sections
	}

	total := 0
	for _, p := range paragraphs {
		total += len(p)
	}
	target := total / n

	sections := make([]string, 0, n)
	var current []string
	size := 0

	for i, para := range paragraphs {
		current = append(current, para)
		size += len(para)

		remainingParas := len(paragraphs) - i - 1
		remainingSections := n - len(sections) - 1
		// Close the section once it reaches the target, but never leave
		// fewer paragraphs than sections still to fill. Force a close when
		// exactly one paragraph per remaining section is left.
		if len(sections) < n-1 &&
			(size >= target || remainingParas == remainingSections) &&
			remainingParas >= remainingSections {
			sections = append(sections, strings.Join(current, "\n\n"))
			current = nil
			size = 0
		}
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n\n"))
	}

	return sections
}
