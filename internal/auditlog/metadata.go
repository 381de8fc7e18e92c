package auditlog

import "context"

// Metadata describes what a command acted on. Commands attach it to their
// context; the central writer in cmd reads it back when the command ends.
type Metadata struct {
	Source string
	Op     string
	Target string
}

type metadataKey struct{}

// WithMetadata attaches audit metadata to a context. Non-empty fields
// replace those already attached.
func WithMetadata(ctx context.Context, meta Metadata) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	existing, _ := ctx.Value(metadataKey{}).(Metadata)
	merged := Metadata{
		Source: pick(meta.Source, existing.Source),
		Op:     pick(meta.Op, existing.Op),
		Target: pick(meta.Target, existing.Target),
	}
	return context.WithValue(ctx, metadataKey{}, merged)
}

// MetadataFromContext returns audit metadata stored in the context.
func MetadataFromContext(ctx context.Context) Metadata {
	if ctx == nil {
		return Metadata{}
	}
	meta, _ := ctx.Value(metadataKey{}).(Metadata)
	return meta
}

func pick(next, fallback string) string {
	if next != "" {
		return next
	}
	return fallback
}
