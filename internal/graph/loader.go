package graph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadEdgeList reads an undirected edge list from path.
// See ReadEdgeList for the accepted format.
func LoadEdgeList(path string, skipHeader int) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open edge list %s: %w", path, err)
	}
	defer f.Close()

	g, err := ReadEdgeList(f, skipHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to read edge list %s: %w", path, err)
	}
	return g, nil
}

// ReadEdgeList parses whitespace separated node pairs, one edge per line.
// The first skipHeader lines are ignored, as are blank lines and lines
// starting with '%' or '#'. Columns after the second are ignored.
func ReadEdgeList(r io.Reader, skipHeader int) (*Graph, error) {
	b := NewBuilder()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum <= skipHeader {
			continue
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: expected two node identifiers, got %q", lineNum, line)
		}
		b.AddEdge(fields[0], fields[1])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	g := b.Build()
	if g.NumNodes() == 0 {
		return nil, fmt.Errorf("edge list contains no edges")
	}
	return g, nil
}
