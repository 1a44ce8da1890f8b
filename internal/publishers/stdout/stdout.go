package stdout

import (
	"context"
	"fmt"
	"io"
	"os"

	"sublink/internal/publishers"
)

type Publisher struct {
	out io.Writer
}

func (p *Publisher) Publish(_ context.Context, artifacts []publishers.Artifact, config map[string]interface{}) error {
	w := p.out
	if w == nil {
		w = os.Stdout
	}
	quiet, _ := config["raw"].(bool)

	for _, a := range artifacts {
		payload, err := publishers.Payload(a, config)
		if err != nil {
			return fmt.Errorf("%s: %w", a.Name, err)
		}
		if !quiet {
			fmt.Fprintf(w, "========== %s (%s) ==========\n", a.Name, a.Target)
		}
		if _, err := w.Write(payload); err != nil {
			return err
		}
		if len(payload) > 0 && payload[len(payload)-1] != '\n' {
			fmt.Fprintln(w)
		}
		if !quiet {
			fmt.Fprintln(w, "============================================")
		}
	}
	return nil
}

func init() {
	publishers.Register("stdout", func() publishers.Publisher { return &Publisher{} })
}
