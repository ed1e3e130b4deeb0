package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/factgraph/factgraph/internal/evidence"
	"github.com/factgraph/factgraph/internal/model"
)

// Builder consumes verified facts and extends the arena with deduplicated
// nodes and typed edges.
//
// Claim-type derivation:
//
//	topic       -> Topic node,       project -HAS_TOPIC-> topic
//	challenge   -> Challenge node,   project -FACED_CHALLENGE-> challenge
//	resolution  -> Resolution node,  challenge -RESOLVED_BY-> resolution
//	                                (project -MENTIONS-> resolution when the
//	                                 resolved challenge cannot be found)
//	person      -> Person node,      project -MENTIONS-> person, and
//	                                deliverable -OWNED_BY-> person via "owns"
//	deliverable -> Deliverable node, project -DELIVERED-> deliverable, and
//	                                deliverable -OWNED_BY-> person via "owner"
//	milestone   -> Milestone node,   project -MENTIONS-> milestone
//	dependency  -> source -DEPENDS_ON-> target via "source"/"target", or a
//	                                Dependency node when unnamed
//	decision    -> Decision node,    project -MENTIONS-> decision, and
//	                                decision -RESOLVES-> challenge via "resolves"
//	risk        -> Risk node,        project -MENTIONS-> risk,
//	                                challenge -CAUSES-> risk via "caused_by",
//	                                decision/resolution -MITIGATES-> risk via
//	                                "mitigated_by"
type Builder struct {
	arena  *Arena
	dedup  *Deduper
	store  evidence.Store
	logger *zap.Logger
}

// NewBuilder creates a builder over the given arena.
func NewBuilder(arena *Arena, dedup *Deduper, store evidence.Store, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{arena: arena, dedup: dedup, store: store, logger: logger}
}

// Arena returns the underlying arena.
func (b *Builder) Arena() *Arena {
	return b.arena
}

// EnsureProject finds or creates the canonical Project node for a context.
func (b *Builder) EnsureProject(ctx context.Context, pc model.ProjectContext, firstSeen time.Time) (string, error) {
	release := b.arena.BeginMutation()
	defer release()
	return b.ensureNode(ctx, model.NodeProject, pc.Name, nil, firstSeen, firstSeen)
}

// Consume derives nodes and edges from one verified fact. Facts in any
// other status are a caller bug. The fact's full dedup-and-insert sequence
// runs under the arena mutation lock, so concurrent contexts never race a
// match against an insert.
func (b *Builder) Consume(ctx context.Context, f *model.Fact, projectID string) error {
	if f.Status != model.StatusVerified {
		return fmt.Errorf("fact %s is %s, only verified facts enter the graph", f.ID, f.Status)
	}

	release := b.arena.BeginMutation()
	defer release()

	ts := b.factTimestamp(f)

	switch f.ClaimType {
	case model.ClaimTypeTopic:
		return b.attachNode(ctx, f, projectID, model.NodeTopic, model.EdgeHasTopic, ts)

	case model.ClaimTypeChallenge:
		return b.attachNode(ctx, f, projectID, model.NodeChallenge, model.EdgeFacedChallenge, ts)

	case model.ClaimTypeResolution:
		return b.consumeResolution(ctx, f, projectID, ts)

	case model.ClaimTypePerson:
		return b.consumePerson(ctx, f, projectID, ts)

	case model.ClaimTypeDeliverable:
		return b.consumeDeliverable(ctx, f, projectID, ts)

	case model.ClaimTypeMilestone:
		return b.attachNode(ctx, f, projectID, model.NodeMilestone, model.EdgeMentions, ts)

	case model.ClaimTypeDependency:
		return b.consumeDependency(ctx, f, projectID, ts)

	case model.ClaimTypeDecision:
		return b.consumeDecision(ctx, f, projectID, ts)

	case model.ClaimTypeRisk:
		return b.consumeRisk(ctx, f, projectID, ts)
	}
	return fmt.Errorf("fact %s has unknown claim type %q", f.ID, f.ClaimType)
}

// attachNode covers the simple shape: one entity node linked from the
// project.
func (b *Builder) attachNode(ctx context.Context, f *model.Fact, projectID string, nt model.NodeType, et model.EdgeType, ts time.Time) error {
	nodeID, err := b.ensureNodeForFact(ctx, nt, f, ts)
	if err != nil {
		return err
	}
	return b.addEdge(projectID, nodeID, et, f, ts)
}

func (b *Builder) consumeResolution(ctx context.Context, f *model.Fact, projectID string, ts time.Time) error {
	resID, err := b.ensureNodeForFact(ctx, model.NodeResolution, f, ts)
	if err != nil {
		return err
	}

	if target := f.Attributes["resolves"]; target != "" {
		if chID, ok, err := b.findExisting(ctx, model.NodeChallenge, target); err != nil {
			return err
		} else if ok {
			return b.addEdge(chID, resID, model.EdgeResolvedBy, f, ts)
		}
	}
	// No challenge to hang it on; keep the resolution reachable.
	return b.addEdge(projectID, resID, model.EdgeMentions, f, ts)
}

func (b *Builder) consumePerson(ctx context.Context, f *model.Fact, projectID string, ts time.Time) error {
	personID, err := b.ensureNodeForFact(ctx, model.NodePerson, f, ts)
	if err != nil {
		return err
	}
	if err := b.addEdge(projectID, personID, model.EdgeMentions, f, ts); err != nil {
		return err
	}

	if owned := f.Attributes["owns"]; owned != "" {
		if delivID, ok, err := b.findExisting(ctx, model.NodeDeliverable, owned); err != nil {
			return err
		} else if ok {
			return b.addEdge(delivID, personID, model.EdgeOwnedBy, f, ts)
		}
	}
	return nil
}

func (b *Builder) consumeDeliverable(ctx context.Context, f *model.Fact, projectID string, ts time.Time) error {
	delivID, err := b.ensureNodeForFact(ctx, model.NodeDeliverable, f, ts)
	if err != nil {
		return err
	}
	if err := b.addEdge(projectID, delivID, model.EdgeDelivered, f, ts); err != nil {
		return err
	}

	if owner := f.Attributes["owner"]; owner != "" {
		personID, err := b.ensureNode(ctx, model.NodePerson, owner, f, ts, ts)
		if err != nil {
			return err
		}
		return b.addEdge(delivID, personID, model.EdgeOwnedBy, f, ts)
	}
	return nil
}

func (b *Builder) consumeDependency(ctx context.Context, f *model.Fact, projectID string, ts time.Time) error {
	source, target := f.Attributes["source"], f.Attributes["target"]
	if source == "" || target == "" {
		// Unnamed endpoints: record the dependency itself as an entity.
		return b.attachNode(ctx, f, projectID, model.NodeDependency, model.EdgeMentions, ts)
	}

	sourceID, err := b.ensureNode(ctx, model.NodeDeliverable, source, f, ts, ts)
	if err != nil {
		return err
	}
	targetID, err := b.ensureNode(ctx, model.NodeDeliverable, target, f, ts, ts)
	if err != nil {
		return err
	}
	if err := b.addEdge(sourceID, targetID, model.EdgeDependsOn, f, ts); err != nil {
		return err
	}

	// Dependency edges are checked after every insertion.
	if cycle := FindDependencyCycle(b.arena); cycle != nil {
		w := model.IntegrityWarning{
			Kind:    "dependency_cycle",
			Detail:  fmt.Sprintf("dependency cycle detected: %s", strings.Join(cycle, " -> ")),
			NodeIDs: cycle,
		}
		b.arena.Warn(w)
		b.logger.Warn("dependency_cycle",
			zap.String("correlation_id", f.ContextID),
			zap.Strings("cycle", cycle))
	}
	return nil
}

func (b *Builder) consumeDecision(ctx context.Context, f *model.Fact, projectID string, ts time.Time) error {
	decisionID, err := b.ensureNodeForFact(ctx, model.NodeDecision, f, ts)
	if err != nil {
		return err
	}
	if err := b.addEdge(projectID, decisionID, model.EdgeMentions, f, ts); err != nil {
		return err
	}

	if target := f.Attributes["resolves"]; target != "" {
		if chID, ok, err := b.findExisting(ctx, model.NodeChallenge, target); err != nil {
			return err
		} else if ok {
			return b.addEdge(decisionID, chID, model.EdgeResolves, f, ts)
		}
	}
	return nil
}

func (b *Builder) consumeRisk(ctx context.Context, f *model.Fact, projectID string, ts time.Time) error {
	riskID, err := b.ensureNodeForFact(ctx, model.NodeRisk, f, ts)
	if err != nil {
		return err
	}
	if err := b.addEdge(projectID, riskID, model.EdgeMentions, f, ts); err != nil {
		return err
	}

	if cause := f.Attributes["caused_by"]; cause != "" {
		if chID, ok, err := b.findExisting(ctx, model.NodeChallenge, cause); err != nil {
			return err
		} else if ok {
			if err := b.addEdge(chID, riskID, model.EdgeCauses, f, ts); err != nil {
				return err
			}
		}
	}

	if mitigation := f.Attributes["mitigated_by"]; mitigation != "" {
		for _, nt := range []model.NodeType{model.NodeDecision, model.NodeResolution} {
			if mitID, ok, err := b.findExisting(ctx, nt, mitigation); err != nil {
				return err
			} else if ok {
				return b.addEdge(mitID, riskID, model.EdgeMitigates, f, ts)
			}
		}
	}
	return nil
}

// ensureNodeForFact derives the entity name from the fact and ensures its
// canonical node, widening last-seen to the fact timestamp.
func (b *Builder) ensureNodeForFact(ctx context.Context, nt model.NodeType, f *model.Fact, ts time.Time) (string, error) {
	name := f.Attributes["name"]
	if name == "" {
		name = f.Text
	}
	id, err := b.ensureNode(ctx, nt, name, f, ts, ts)
	return id, err
}

// ensureNode runs deduplication before insertion: it either unions the
// mention into an existing node at or above the similarity threshold
// (merging any further duplicates into it), or creates a new node. The
// caller holds the arena mutation lock.
func (b *Builder) ensureNode(ctx context.Context, nt model.NodeType, name string, f *model.Fact, firstSeen, lastSeen time.Time) (string, error) {
	matches, err := b.dedup.FindMatches(ctx, b.arena, nt, name)
	if err != nil {
		return "", fmt.Errorf("dedup %s %q: %w", nt, name, err)
	}

	if len(matches) == 0 {
		node := &model.Node{
			ID:            uuid.NewString(),
			Type:          nt,
			CanonicalName: name,
			FirstSeen:     firstSeen,
			LastSeen:      lastSeen,
		}
		if f != nil {
			node.Evidence = append([]string(nil), f.Evidence...)
			node.FactIDs = []string{f.ID}
		}
		if err := b.arena.AddNode(node); err != nil {
			return "", err
		}
		b.dedup.LogDecision(nt, name, node.ID, 0, false)
		return node.ID, nil
	}

	best := matches[0]
	b.dedup.LogDecision(nt, name, best.NodeID, best.Score, true)

	// A new mention matching several existing nodes means those nodes are
	// duplicates of each other; collapse them into the best match.
	for _, m := range matches[1:] {
		if err := b.arena.Merge(best.NodeID, m.NodeID); err != nil {
			return "", err
		}
		b.dedup.LogDecision(nt, name, m.NodeID, m.Score, true)
	}

	canonicalID := b.arena.CanonicalID(best.NodeID)
	var ev []string
	factID := ""
	if f != nil {
		ev = f.Evidence
		factID = f.ID
	}
	if err := b.arena.AbsorbMention(canonicalID, name, ev, factID, firstSeen, lastSeen); err != nil {
		return "", err
	}
	return canonicalID, nil
}

// findExisting locates a node of the given type by name without creating
// one.
func (b *Builder) findExisting(ctx context.Context, nt model.NodeType, name string) (string, bool, error) {
	matches, err := b.dedup.FindMatches(ctx, b.arena, nt, name)
	if err != nil {
		return "", false, err
	}
	if len(matches) == 0 {
		return "", false, nil
	}
	return matches[0].NodeID, true, nil
}

// addEdge inserts a typed edge, accruing corroborating evidence onto an
// identical active edge and superseding a conflicting one for single-target
// edge types.
func (b *Builder) addEdge(sourceID, targetID string, et model.EdgeType, f *model.Fact, ts time.Time) error {
	edge := &model.Edge{
		ID:            uuid.NewString(),
		SourceID:      sourceID,
		TargetID:      targetID,
		Type:          et,
		Evidence:      []string{f.ID},
		EstablishedAt: ts,
		Confidence:    f.VerifiedConfidence,
		Seq:           f.Seq,
	}

	// OWNED_BY and RESOLVED_BY admit one active target; newer conflicting
	// evidence supersedes, the old edge stays for audit.
	singleTarget := et == model.EdgeOwnedBy || et == model.EdgeResolvedBy
	superseded, err := b.arena.UpsertEdge(edge, singleTarget)
	if err != nil {
		return err
	}
	if superseded != nil {
		b.logger.Info("edge_superseded",
			zap.String("edge_id", superseded.ID),
			zap.String("superseded_by", edge.ID),
			zap.String("type", string(et)))
	}
	return nil
}

// factTimestamp picks the fact's own date, falling back to the earliest
// cited message timestamp.
func (b *Builder) factTimestamp(f *model.Fact) time.Time {
	if f.Timestamp != nil && !f.Timestamp.IsZero() {
		return *f.Timestamp
	}
	var earliest time.Time
	for _, id := range f.Evidence {
		if m, ok := b.store.Get(id); ok {
			if earliest.IsZero() || m.Timestamp.Before(earliest) {
				earliest = m.Timestamp
			}
		}
	}
	return earliest
}
