package taxonomy

import (
	"context"
	"log/slog"
)

// Source describes where the active taxonomy comes from
type Source struct {
	DatabaseURL string
	Version     string
	File        string
}

// Resolve loads the taxonomy from the database, a file, or the built-in default, in that order
func Resolve(ctx context.Context, src Source, logger *slog.Logger) (*Taxonomy, error) {
	var (
		t   *Taxonomy
		err error
	)

	switch {
	case src.DatabaseURL != "":
		t, err = fromStore(ctx, src)
	case src.File != "":
		t, err = LoadFile(src.File)
	default:
		t = Default()
	}
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("gesture taxonomy loaded",
			"version", t.Version,
			"gestures", len(t.Gestures),
		)
	}
	return t, nil
}

func fromStore(ctx context.Context, src Source) (*Taxonomy, error) {
	store, err := NewStore(ctx, src.DatabaseURL)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if src.Version != "" {
		return store.Get(ctx, src.Version)
	}
	return store.Latest(ctx)
}
