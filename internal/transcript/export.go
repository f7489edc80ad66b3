package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/longkey1/rulechat/internal/conversation"
)

// Exporter writes a transcript in one format
type Exporter interface {
	Export(t *Transcript, w io.Writer) error
	Extension() string
}

// NewExporter creates an exporter for format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "json":
		return jsonExporter{}, nil
	case "yaml", "yml":
		return yamlExporter{}, nil
	case "md", "markdown":
		return markdownExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: json, yaml, markdown)", format)
	}
}

type jsonExporter struct{}

func (jsonExporter) Export(t *Transcript, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

func (jsonExporter) Extension() string { return "json" }

type yamlExporter struct{}

func (yamlExporter) Export(t *Transcript, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

func (yamlExporter) Extension() string { return "yaml" }

type markdownExporter struct{}

func (markdownExporter) Export(t *Transcript, w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Transcript %s\n\n", t.DisplayName())
	fmt.Fprintf(&b, "**Conversation:** %s  \n", t.ConversationID)
	if t.Backend != "" {
		fmt.Fprintf(&b, "**Backend:** %s  \n", t.Backend)
	}
	fmt.Fprintf(&b, "**Created:** %s  \n", t.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "**Messages:** %d\n\n", t.MessageCount())
	b.WriteString("---\n\n")

	for i, m := range t.Messages {
		b.WriteString(conversation.RenderMarkdown(m))
		if i < len(t.Messages)-1 {
			b.WriteString("---\n\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (markdownExporter) Extension() string { return "md" }
