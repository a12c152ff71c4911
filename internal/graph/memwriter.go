package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemWriter is an in-memory Writer with the same idempotency semantics as the
// Neo4j implementation. It backs the reconciliation tests, which assert on
// final graph state rather than on call sequences.
type MemWriter struct {
	mu    sync.Mutex
	nodes map[string]Props
	rels  map[string]Props
}

// NewMemWriter creates an empty in-memory graph.
func NewMemWriter() *MemWriter {
	return &MemWriter{
		nodes: make(map[string]Props),
		rels:  make(map[string]Props),
	}
}

func nodeKey(label, key string) string {
	return label + "/" + key
}

func relKey(relType, fromLabel, fromKey, toLabel, toKey string) string {
	return fmt.Sprintf("%s/%s/%s->%s/%s/%s", fromLabel, fromKey, relType, relType, toLabel, toKey)
}

// UpsertNode merges props onto the node, creating it when absent.
func (m *MemWriter) UpsertNode(ctx context.Context, label, key string, props Props) error {
	if err := ValidateLabel(label); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeNode(label, key, props)
	return nil
}

// UpsertRelationship merges both endpoints and the relationship.
func (m *MemWriter) UpsertRelationship(
	ctx context.Context,
	relType, fromLabel, fromKey, toLabel, toKey string,
	props Props,
) error {
	if err := ValidateRelType(relType); err != nil {
		return err
	}
	if err := ValidateLabel(fromLabel); err != nil {
		return err
	}
	if err := ValidateLabel(toLabel); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.mergeNode(fromLabel, fromKey, nil)
	m.mergeNode(toLabel, toKey, nil)
	m.mergeRel(relType, fromLabel, fromKey, toLabel, toKey, props, false)
	return nil
}

// ReplaceRelationshipSet installs exactly the given target set.
func (m *MemWriter) ReplaceRelationshipSet(
	ctx context.Context,
	relType, fromLabel, fromKey, toLabel string,
	targets []RelTarget,
) error {
	if err := ValidateRelType(relType); err != nil {
		return err
	}
	if err := ValidateLabel(fromLabel); err != nil {
		return err
	}
	if err := ValidateLabel(toLabel); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.mergeNode(fromLabel, fromKey, nil)

	prefix := fmt.Sprintf("%s/%s/%s->%s/%s/", fromLabel, fromKey, relType, relType, toLabel)
	for key := range m.rels {
		if strings.HasPrefix(key, prefix) {
			delete(m.rels, key)
		}
	}

	for _, target := range targets {
		m.mergeNode(toLabel, target.Key, target.NodeProps)
		m.mergeRel(relType, fromLabel, fromKey, toLabel, target.Key, target.RelProps, true)
	}
	return nil
}

// DetachDeleteNode removes the node and every incident relationship.
func (m *MemWriter) DetachDeleteNode(ctx context.Context, label, key string) error {
	if err := ValidateLabel(label); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.nodes, nodeKey(label, key))

	endpoint := label + "/" + key
	for rel := range m.rels {
		from, rest, ok := splitRel(rel)
		if !ok {
			continue
		}
		if from == endpoint || rest == endpoint {
			delete(m.rels, rel)
		}
	}
	return nil
}

// mergeNode overlays props onto an existing node or creates it. Callers hold mu.
func (m *MemWriter) mergeNode(label, key string, props Props) {
	id := nodeKey(label, key)
	existing, ok := m.nodes[id]
	if !ok {
		existing = Props{}
		m.nodes[id] = existing
	}
	for k, v := range props {
		existing[k] = v
	}
}

// mergeRel sets or overlays relationship properties. replace=true overwrites
// the property map wholesale, matching SET r = in Cypher. Callers hold mu.
func (m *MemWriter) mergeRel(relType, fromLabel, fromKey, toLabel, toKey string, props Props, replace bool) {
	id := relKey(relType, fromLabel, fromKey, toLabel, toKey)
	if replace {
		copied := Props{}
		for k, v := range props {
			copied[k] = v
		}
		m.rels[id] = copied
		return
	}
	existing, ok := m.rels[id]
	if !ok {
		existing = Props{}
		m.rels[id] = existing
	}
	for k, v := range props {
		existing[k] = v
	}
}

// splitRel decomposes a relationship key into its from and to endpoints
// ("label/key" each).
func splitRel(rel string) (from, to string, ok bool) {
	parts := strings.Split(rel, "->")
	if len(parts) != 2 {
		return "", "", false
	}
	fromParts := strings.Split(parts[0], "/")
	toParts := strings.Split(parts[1], "/")
	if len(fromParts) != 3 || len(toParts) != 3 {
		return "", "", false
	}
	return fromParts[0] + "/" + fromParts[1], toParts[1] + "/" + toParts[2], true
}

// HasNode reports whether a node with the given label and key exists.
func (m *MemWriter) HasNode(label, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[nodeKey(label, key)]
	return ok
}

// NodeProps returns a copy of the node's properties, or nil when absent.
func (m *MemWriter) NodeProps(label, key string) Props {
	m.mu.Lock()
	defer m.mu.Unlock()
	props, ok := m.nodes[nodeKey(label, key)]
	if !ok {
		return nil
	}
	copied := Props{}
	for k, v := range props {
		copied[k] = v
	}
	return copied
}

// RelatedKeys returns the sorted target keys of relType relationships from the
// given source node to toLabel nodes.
func (m *MemWriter) RelatedKeys(relType, fromLabel, fromKey, toLabel string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := fmt.Sprintf("%s/%s/%s->%s/%s/", fromLabel, fromKey, relType, relType, toLabel)
	var keys []string
	for rel := range m.rels {
		if strings.HasPrefix(rel, prefix) {
			keys = append(keys, strings.TrimPrefix(rel, prefix))
		}
	}
	sort.Strings(keys)
	return keys
}

// RelProps returns a copy of a relationship's properties, or nil when absent.
func (m *MemWriter) RelProps(relType, fromLabel, fromKey, toLabel, toKey string) Props {
	m.mu.Lock()
	defer m.mu.Unlock()
	props, ok := m.rels[relKey(relType, fromLabel, fromKey, toLabel, toKey)]
	if !ok {
		return nil
	}
	copied := Props{}
	for k, v := range props {
		copied[k] = v
	}
	return copied
}

// Fingerprint returns a deterministic rendering of the entire graph state,
// used to compare states across reconciliation runs.
func (m *MemWriter) Fingerprint() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lines []string
	for id, props := range m.nodes {
		lines = append(lines, "node "+id+" "+renderProps(props))
	}
	for id, props := range m.rels {
		lines = append(lines, "rel "+id+" "+renderProps(props))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func renderProps(props Props) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, props[k])
	}
	b.WriteString("}")
	return b.String()
}
