package graph

import (
	"context"
	"sync"
	"testing"

	"github.com/factgraph/factgraph/internal/evidence"
	"github.com/factgraph/factgraph/internal/model"
)

func builderStore(t *testing.T) evidence.Store {
	t.Helper()
	store, err := evidence.NewMemoryStore([]model.Message{
		{ID: "m1", Sender: "ana@corp.test", Body: "Kickoff for Apollo.", Timestamp: day(1)},
		{ID: "m2", Sender: "bo@corp.test", Body: "Stripe API integration is underway.", Timestamp: day(2)},
		{ID: "m3", Sender: "ana@corp.test", Body: "Bo owns the payment gateway now.", Timestamp: day(3)},
	})
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func newTestBuilder(t *testing.T, sim Similarity) *Builder {
	t.Helper()
	if sim == nil {
		sim = LexicalSimilarity{}
	}
	return NewBuilder(NewArena(), NewDeduper(sim, 0.90, nil), builderStore(t), nil)
}

func verifiedFact(id string, ct model.ClaimType, text string, attrs map[string]string, evidenceIDs ...string) *model.Fact {
	f := &model.Fact{
		ID:                   id,
		ContextID:            "ctx-1",
		ClaimType:            ct,
		Text:                 text,
		Evidence:             evidenceIDs,
		ExtractionConfidence: 0.8,
		Status:               model.StatusPending,
		Attributes:           attrs,
	}
	_ = f.SetVerification(model.StatusVerified, 0.85, nil, "", 1)
	return f
}

func mustProject(t *testing.T, b *Builder) string {
	t.Helper()
	pc := model.ProjectContext{ID: "ctx-1", Name: "Apollo", MessageIDs: []string{"m1", "m2", "m3"}}
	id, err := b.EnsureProject(context.Background(), pc, day(1))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestConsume_RejectsNonVerified(t *testing.T) {
	b := newTestBuilder(t, nil)
	projectID := mustProject(t, b)

	f := &model.Fact{ID: "f1", ClaimType: model.ClaimTypeTopic, Text: "Billing", Status: model.StatusPending, Evidence: []string{"m1"}}
	if err := b.Consume(context.Background(), f, projectID); err == nil {
		t.Error("pending fact entered the graph")
	}
}

func TestConsume_TopicAndChallenge(t *testing.T) {
	b := newTestBuilder(t, nil)
	projectID := mustProject(t, b)
	ctx := context.Background()

	if err := b.Consume(ctx, verifiedFact("f1", model.ClaimTypeTopic, "Billing Migration", nil, "m1"), projectID); err != nil {
		t.Fatal(err)
	}
	if err := b.Consume(ctx, verifiedFact("f2", model.ClaimTypeChallenge, "Vendor API blocked", nil, "m2"), projectID); err != nil {
		t.Fatal(err)
	}

	topics := b.Arena().NodesOfType(model.NodeTopic)
	if len(topics) != 1 || topics[0].CanonicalName != "Billing Migration" {
		t.Fatalf("topics = %+v", topics)
	}
	if _, ok := b.Arena().FindEdge(projectID, topics[0].ID, model.EdgeHasTopic); !ok {
		t.Error("HAS_TOPIC edge missing")
	}
	challenges := b.Arena().NodesOfType(model.NodeChallenge)
	if _, ok := b.Arena().FindEdge(projectID, challenges[0].ID, model.EdgeFacedChallenge); !ok {
		t.Error("FACED_CHALLENGE edge missing")
	}
}

func TestConsume_ResolutionLinksChallenge(t *testing.T) {
	b := newTestBuilder(t, nil)
	projectID := mustProject(t, b)
	ctx := context.Background()

	if err := b.Consume(ctx, verifiedFact("f1", model.ClaimTypeChallenge, "Vendor API blocked", nil, "m2"), projectID); err != nil {
		t.Fatal(err)
	}
	res := verifiedFact("f2", model.ClaimTypeResolution, "Credentials issued", map[string]string{"resolves": "Vendor API blocked"}, "m3")
	if err := b.Consume(ctx, res, projectID); err != nil {
		t.Fatal(err)
	}

	chID := b.Arena().NodesOfType(model.NodeChallenge)[0].ID
	resID := b.Arena().NodesOfType(model.NodeResolution)[0].ID
	e, ok := b.Arena().FindEdge(chID, resID, model.EdgeResolvedBy)
	if !ok {
		t.Fatal("RESOLVED_BY edge missing")
	}
	if e.Confidence != 0.85 {
		t.Errorf("edge confidence = %v, want the fact's verified confidence", e.Confidence)
	}
}

func TestConsume_ResolutionWithoutChallengeStaysReachable(t *testing.T) {
	b := newTestBuilder(t, nil)
	projectID := mustProject(t, b)

	res := verifiedFact("f1", model.ClaimTypeResolution, "Credentials issued", map[string]string{"resolves": "Nothing Known"}, "m3")
	if err := b.Consume(context.Background(), res, projectID); err != nil {
		t.Fatal(err)
	}

	resID := b.Arena().NodesOfType(model.NodeResolution)[0].ID
	if _, ok := b.Arena().FindEdge(projectID, resID, model.EdgeMentions); !ok {
		t.Error("orphan resolution not attached to the project")
	}
}

func TestConsume_DeliverableOwnerSupersede(t *testing.T) {
	b := newTestBuilder(t, nil)
	projectID := mustProject(t, b)
	ctx := context.Background()

	d1 := verifiedFact("f1", model.ClaimTypeDeliverable, "Payment Gateway", map[string]string{"owner": "Ana Silva"}, "m2")
	if err := b.Consume(ctx, d1, projectID); err != nil {
		t.Fatal(err)
	}
	delivID := b.Arena().NodesOfType(model.NodeDeliverable)[0].ID
	first, ok := b.Arena().ActiveEdge(delivID, model.EdgeOwnedBy)
	if !ok {
		t.Fatal("first OWNED_BY edge missing")
	}

	// Newer evidence names a different owner: the old edge stays, superseded.
	d2 := verifiedFact("f2", model.ClaimTypeDeliverable, "Payment Gateway", map[string]string{"owner": "Bo Chen"}, "m3")
	if err := b.Consume(ctx, d2, projectID); err != nil {
		t.Fatal(err)
	}

	active, ok := b.Arena().ActiveEdge(delivID, model.EdgeOwnedBy)
	if !ok {
		t.Fatal("no active OWNED_BY edge after supersede")
	}
	if active.ID == first.ID {
		t.Error("ownership edge not superseded by the newer owner")
	}
	if !first.Superseded || first.SupersededBy != active.ID {
		t.Errorf("old edge state = superseded:%v by:%s", first.Superseded, first.SupersededBy)
	}
	if len(b.Arena().NodesOfType(model.NodePerson)) != 2 {
		t.Error("owner persons not both present")
	}
}

func TestConsume_IdenticalTripleAccruesEvidence(t *testing.T) {
	b := newTestBuilder(t, nil)
	projectID := mustProject(t, b)
	ctx := context.Background()

	if err := b.Consume(ctx, verifiedFact("f1", model.ClaimTypeTopic, "Billing Migration", nil, "m1"), projectID); err != nil {
		t.Fatal(err)
	}
	if err := b.Consume(ctx, verifiedFact("f2", model.ClaimTypeTopic, "Billing Migration", nil, "m2"), projectID); err != nil {
		t.Fatal(err)
	}

	topicID := b.Arena().NodesOfType(model.NodeTopic)[0].ID
	e, _ := b.Arena().FindEdge(projectID, topicID, model.EdgeHasTopic)
	if len(e.Evidence) != 2 {
		t.Errorf("edge evidence = %v, want both fact ids", e.Evidence)
	}
	doc := b.Arena().Document()
	if doc.Stats.EdgesByType[model.EdgeHasTopic] != 1 {
		t.Error("identical triple created a second edge")
	}
}

func TestConsume_DedupMergesSimilarNames(t *testing.T) {
	sim := stubSimilarity{scores: map[string]float64{
		"Stripe API|Payment Gateway (Stripe)": 0.93,
	}}
	b := newTestBuilder(t, sim)
	projectID := mustProject(t, b)
	ctx := context.Background()

	if err := b.Consume(ctx, verifiedFact("f1", model.ClaimTypeDeliverable, "Stripe API", nil, "m2"), projectID); err != nil {
		t.Fatal(err)
	}
	if err := b.Consume(ctx, verifiedFact("f2", model.ClaimTypeDeliverable, "Payment Gateway (Stripe)", nil, "m3"), projectID); err != nil {
		t.Fatal(err)
	}

	delivs := b.Arena().NodesOfType(model.NodeDeliverable)
	if len(delivs) != 1 {
		t.Fatalf("deliverables = %d, want 1 after dedup", len(delivs))
	}
	n := delivs[0]
	if !n.HasAlias("Payment Gateway (Stripe)") {
		t.Errorf("aliases = %v, missing merged surface form", n.Aliases)
	}
	if len(n.Evidence) != 2 || len(n.FactIDs) != 2 {
		t.Errorf("evidence/facts not unioned: %v / %v", n.Evidence, n.FactIDs)
	}
	if !n.FirstSeen.Equal(day(2)) || !n.LastSeen.Equal(day(3)) {
		t.Errorf("seen window = %v..%v", n.FirstSeen, n.LastSeen)
	}
}

func TestConsume_DependencyCycleWarns(t *testing.T) {
	b := newTestBuilder(t, nil)
	projectID := mustProject(t, b)
	ctx := context.Background()

	dep := func(id, source, target string) *model.Fact {
		return verifiedFact(id, model.ClaimTypeDependency, source+" depends on "+target,
			map[string]string{"source": source, "target": target}, "m2")
	}
	if err := b.Consume(ctx, dep("f1", "Backend Rollout", "Schema Migration"), projectID); err != nil {
		t.Fatal(err)
	}
	if err := b.Consume(ctx, dep("f2", "Schema Migration", "Backend Rollout"), projectID); err != nil {
		t.Fatal(err)
	}

	warnings := b.Arena().Warnings()
	if len(warnings) != 1 || warnings[0].Kind != "dependency_cycle" {
		t.Fatalf("warnings = %+v, want one dependency_cycle", warnings)
	}
	// The cycle is flagged, not silently dropped: both edges remain.
	if b.Arena().Document().Stats.EdgesByType[model.EdgeDependsOn] != 2 {
		t.Error("dependency edges removed instead of warned")
	}
}

func TestConsume_DecisionResolvesChallenge(t *testing.T) {
	b := newTestBuilder(t, nil)
	projectID := mustProject(t, b)
	ctx := context.Background()

	if err := b.Consume(ctx, verifiedFact("f1", model.ClaimTypeChallenge, "Vendor API blocked", nil, "m2"), projectID); err != nil {
		t.Fatal(err)
	}
	dec := verifiedFact("f2", model.ClaimTypeDecision, "Switch to sandbox credentials", map[string]string{"resolves": "Vendor API blocked"}, "m3")
	if err := b.Consume(ctx, dec, projectID); err != nil {
		t.Fatal(err)
	}

	decID := b.Arena().NodesOfType(model.NodeDecision)[0].ID
	chID := b.Arena().NodesOfType(model.NodeChallenge)[0].ID
	if _, ok := b.Arena().FindEdge(decID, chID, model.EdgeResolves); !ok {
		t.Error("RESOLVES edge missing")
	}
}

func TestConsume_RiskLinksCauseAndMitigation(t *testing.T) {
	b := newTestBuilder(t, nil)
	projectID := mustProject(t, b)
	ctx := context.Background()

	if err := b.Consume(ctx, verifiedFact("f1", model.ClaimTypeChallenge, "Vendor API blocked", nil, "m2"), projectID); err != nil {
		t.Fatal(err)
	}
	if err := b.Consume(ctx, verifiedFact("f2", model.ClaimTypeDecision, "Switch to sandbox credentials", nil, "m3"), projectID); err != nil {
		t.Fatal(err)
	}
	risk := verifiedFact("f3", model.ClaimTypeRisk, "Launch slip",
		map[string]string{"caused_by": "Vendor API blocked", "mitigated_by": "Switch to sandbox credentials"}, "m3")
	if err := b.Consume(ctx, risk, projectID); err != nil {
		t.Fatal(err)
	}

	riskID := b.Arena().NodesOfType(model.NodeRisk)[0].ID
	chID := b.Arena().NodesOfType(model.NodeChallenge)[0].ID
	decID := b.Arena().NodesOfType(model.NodeDecision)[0].ID
	if _, ok := b.Arena().FindEdge(chID, riskID, model.EdgeCauses); !ok {
		t.Error("CAUSES edge missing")
	}
	if _, ok := b.Arena().FindEdge(decID, riskID, model.EdgeMitigates); !ok {
		t.Error("MITIGATES edge missing")
	}
}

func TestConsume_TimestampFallsBackToEarliestMessage(t *testing.T) {
	b := newTestBuilder(t, nil)
	projectID := mustProject(t, b)

	f := verifiedFact("f1", model.ClaimTypeTopic, "Billing Migration", nil, "m3", "m2")
	if err := b.Consume(context.Background(), f, projectID); err != nil {
		t.Fatal(err)
	}

	topicID := b.Arena().NodesOfType(model.NodeTopic)[0].ID
	e, _ := b.Arena().FindEdge(projectID, topicID, model.EdgeHasTopic)
	if !e.EstablishedAt.Equal(day(2)) {
		t.Errorf("established at %v, want the earliest cited message day(2)", e.EstablishedAt)
	}
}

func TestConsume_FactDateWins(t *testing.T) {
	b := newTestBuilder(t, nil)
	projectID := mustProject(t, b)

	stated := day(7)
	f := verifiedFact("f1", model.ClaimTypeMilestone, "Launch on March 7", nil, "m1")
	f.Timestamp = &stated
	if err := b.Consume(context.Background(), f, projectID); err != nil {
		t.Fatal(err)
	}

	msID := b.Arena().NodesOfType(model.NodeMilestone)[0].ID
	e, _ := b.Arena().FindEdge(projectID, msID, model.EdgeMentions)
	if !e.EstablishedAt.Equal(stated) {
		t.Errorf("established at %v, want the fact's own date", e.EstablishedAt)
	}
}

func TestConsume_ConcurrentSimilarMentionsMergeOnce(t *testing.T) {
	sim := stubSimilarity{scores: map[string]float64{
		"Stripe Gateway|Zeta Gateway": 0.95,
	}}
	b := newTestBuilder(t, sim)
	projectID := mustProject(t, b)
	ctx := context.Background()

	if err := b.Consume(ctx, verifiedFact("f1", model.ClaimTypeDeliverable, "Stripe Gateway", nil, "m2"), projectID); err != nil {
		t.Fatal(err)
	}

	// Two mentions whose names start with different letters both match the
	// seeded node; consumed concurrently they must land on the same
	// canonical node.
	names := []string{"Stripe Gateway", "Zeta Gateway"}
	ids := []string{"f2", "f3"}
	errs := make([]error, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = b.Consume(ctx, verifiedFact(ids[i], model.ClaimTypeDeliverable, names[i], nil, "m3"), projectID)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	deliverables := b.Arena().NodesOfType(model.NodeDeliverable)
	if len(deliverables) != 1 {
		t.Fatalf("got %d deliverable nodes, want 1", len(deliverables))
	}
	n := deliverables[0]
	if n.CanonicalName != "Zeta Gateway" && !n.HasAlias("Zeta Gateway") {
		t.Errorf("second surface form not absorbed: %q %v", n.CanonicalName, n.Aliases)
	}
	if len(n.Evidence) != 2 {
		t.Errorf("node evidence = %v, want m2 and m3", n.Evidence)
	}
	if len(n.FactIDs) != 3 {
		t.Errorf("node fact ids = %v, want f1 f2 f3", n.FactIDs)
	}

	edge, ok := b.Arena().FindEdge(projectID, n.ID, model.EdgeDelivered)
	if !ok {
		t.Fatal("delivered edge missing")
	}
	if len(edge.Evidence) != 3 {
		t.Errorf("edge evidence = %v, want f1 f2 f3", edge.Evidence)
	}
}

func TestConsume_ConcurrentFirstMentionsCreateOneNode(t *testing.T) {
	sim := stubSimilarity{scores: map[string]float64{
		"Stripe Gateway|Zeta Gateway": 0.95,
	}}
	b := newTestBuilder(t, sim)
	projectID := mustProject(t, b)
	ctx := context.Background()

	names := []string{"Stripe Gateway", "Zeta Gateway"}
	ids := []string{"f1", "f2"}
	errs := make([]error, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = b.Consume(ctx, verifiedFact(ids[i], model.ClaimTypeDeliverable, names[i], nil, "m2"), projectID)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	deliverables := b.Arena().NodesOfType(model.NodeDeliverable)
	if len(deliverables) != 1 {
		t.Fatalf("got %d deliverable nodes, want 1", len(deliverables))
	}
	n := deliverables[0]
	forms := append([]string{n.CanonicalName}, n.Aliases...)
	seen := make(map[string]bool, len(forms))
	for _, form := range forms {
		seen[form] = true
	}
	for _, name := range names {
		if !seen[name] {
			t.Errorf("surface form %q missing from %v", name, forms)
		}
	}
}
