package graph

import "context"

// OpKind discriminates the tagged Op variants.
type OpKind int

const (
	OpKindUpsertNode OpKind = iota
	OpKindUpsertRelationship
	OpKindReplaceRelationshipSet
	OpKindDetachDeleteNode
)

// Op is one desired-state graph mutation. Reconciliation strategies are pure
// functions from an aggregate snapshot to a sequence of Ops; Apply drives a
// Writer with them. Keeping the set computation explicit (replace-set rather
// than individual add/remove events) is what preserves idempotence.
type Op struct {
	Kind OpKind

	// UpsertNode / DetachDeleteNode
	Label string
	Key   string
	Props Props

	// UpsertRelationship / ReplaceRelationshipSet
	RelType   string
	FromLabel string
	FromKey   string
	ToLabel   string
	ToKey     string
	Targets   []RelTarget
}

// UpsertNode builds an upsert-node operation.
func UpsertNode(label, key string, props Props) Op {
	return Op{Kind: OpKindUpsertNode, Label: label, Key: key, Props: props}
}

// UpsertRelationship builds a single-relationship upsert operation.
func UpsertRelationship(relType, fromLabel, fromKey, toLabel, toKey string, props Props) Op {
	return Op{
		Kind:      OpKindUpsertRelationship,
		RelType:   relType,
		FromLabel: fromLabel,
		FromKey:   fromKey,
		ToLabel:   toLabel,
		ToKey:     toKey,
		Props:     props,
	}
}

// ReplaceRelationshipSet builds a wholesale relationship-set replacement operation.
func ReplaceRelationshipSet(relType, fromLabel, fromKey, toLabel string, targets []RelTarget) Op {
	return Op{
		Kind:      OpKindReplaceRelationshipSet,
		RelType:   relType,
		FromLabel: fromLabel,
		FromKey:   fromKey,
		ToLabel:   toLabel,
		Targets:   targets,
	}
}

// DetachDeleteNode builds a detach-delete operation.
func DetachDeleteNode(label, key string) Op {
	return Op{Kind: OpKindDetachDeleteNode, Label: label, Key: key}
}

// Apply executes ops in order against w, stopping at the first failure.
// Ops are individually idempotent, so a partial failure is safe to retry
// from the beginning.
func Apply(ctx context.Context, w Writer, ops []Op) error {
	for _, op := range ops {
		var err error
		switch op.Kind {
		case OpKindUpsertNode:
			err = w.UpsertNode(ctx, op.Label, op.Key, op.Props)
		case OpKindUpsertRelationship:
			err = w.UpsertRelationship(ctx, op.RelType, op.FromLabel, op.FromKey, op.ToLabel, op.ToKey, op.Props)
		case OpKindReplaceRelationshipSet:
			err = w.ReplaceRelationshipSet(ctx, op.RelType, op.FromLabel, op.FromKey, op.ToLabel, op.Targets)
		case OpKindDetachDeleteNode:
			err = w.DetachDeleteNode(ctx, op.Label, op.Key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
