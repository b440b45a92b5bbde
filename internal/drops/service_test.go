package drops

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sudsyhq/sudsy-backend/internal/audit"
	"github.com/sudsyhq/sudsy-backend/internal/notify"
	"github.com/sudsyhq/sudsy-backend/pkg/db/models"
	"github.com/sudsyhq/sudsy-backend/pkg/enums"
	pkgerrors "github.com/sudsyhq/sudsy-backend/pkg/errors"
	"github.com/sudsyhq/sudsy-backend/pkg/logger"
)

type memDropsRepo struct {
	drops map[uuid.UUID]*models.Drop
	scans []models.ScanEvent
}

func newMemDropsRepo() *memDropsRepo {
	return &memDropsRepo{drops: make(map[uuid.UUID]*models.Drop)}
}

func (m *memDropsRepo) Create(ctx context.Context, drop *models.Drop) (*models.Drop, error) {
	if drop.ID == uuid.Nil {
		drop.ID = uuid.New()
	}
	clone := *drop
	m.drops[drop.ID] = &clone
	return drop, nil
}

func (m *memDropsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Drop, error) {
	if drop, ok := m.drops[id]; ok {
		clone := *drop
		return &clone, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "drop not found")
}

func (m *memDropsRepo) FindByTag(ctx context.Context, tag string) (*models.Drop, error) {
	for _, drop := range m.drops {
		if drop.Tag == tag {
			clone := *drop
			return &clone, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "drop not found")
}

func (m *memDropsRepo) FindOpenByMember(ctx context.Context, memberID uuid.UUID) ([]models.Drop, error) {
	var open []models.Drop
	for _, drop := range m.drops {
		if drop.MemberID == memberID && !drop.Status.IsTerminal() {
			open = append(open, *drop)
		}
	}
	return open, nil
}

func (m *memDropsRepo) AppendScan(ctx context.Context, event *models.ScanEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	m.scans = append(m.scans, *event)
	return nil
}

func (m *memDropsRepo) ListScans(ctx context.Context, dropID uuid.UUID) ([]models.ScanEvent, error) {
	var out []models.ScanEvent
	for _, scan := range m.scans {
		if scan.DropID == dropID {
			out = append(out, scan)
		}
	}
	return out, nil
}

func (m *memDropsRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DropStatus, changedAt time.Time) error {
	drop, ok := m.drops[id]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "drop not found")
	}
	drop.Status = status
	drop.StatusChangedAt = changedAt
	return nil
}

func (m *memDropsRepo) SetHasOpenIssue(ctx context.Context, id uuid.UUID, open bool) error {
	drop, ok := m.drops[id]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "drop not found")
	}
	drop.HasOpenIssue = open
	return nil
}

func (m *memDropsRepo) MarkNotificationSent(ctx context.Context, id uuid.UUID, kind enums.NotificationKind) error {
	drop, ok := m.drops[id]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "drop not found")
	}
	switch kind {
	case enums.NotificationPickupConfirm:
		drop.PickupConfirmSent = true
	case enums.NotificationDropReady:
		drop.ReadyNotificationSent = true
	case enums.NotificationPickupReminder:
		drop.PickupReminderSent = true
	}
	return nil
}

func (m *memDropsRepo) ListOpenPipeline(ctx context.Context) ([]models.Drop, error) {
	var open []models.Drop
	for _, drop := range m.drops {
		if !drop.Status.IsTerminal() {
			open = append(open, *drop)
		}
	}
	return open, nil
}

func (m *memDropsRepo) ListReadyForReminder(ctx context.Context, readyBefore time.Time) ([]models.Drop, error) {
	var due []models.Drop
	for _, drop := range m.drops {
		if drop.Status == enums.DropStatusReady && !drop.PickupReminderSent && !drop.StatusChangedAt.After(readyBefore) {
			due = append(due, *drop)
		}
	}
	return due, nil
}

type stubMemberStore struct {
	members map[uuid.UUID]*models.Member
	consume func(ctx context.Context, id uuid.UUID) error
}

func (s *stubMemberStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	if member, ok := s.members[id]; ok {
		return member, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
}

func (s *stubMemberStore) ConsumeDropAllowance(ctx context.Context, id uuid.UUID) error {
	if s.consume != nil {
		return s.consume(ctx, id)
	}
	member, ok := s.members[id]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "member not found")
	}
	if member.DropsRemaining <= 0 {
		return pkgerrors.New(pkgerrors.CodePrecondition, "no drops remaining in the current cycle")
	}
	member.DropsRemaining--
	return nil
}

type fakeDispatcher struct {
	sent []notify.Notification
	err  error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, n notify.Notification) (*notify.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, n)
	return &notify.Result{Channel: enums.ChannelChat}, nil
}

type stubRecorder struct {
	entries []audit.Entry
}

func (s *stubRecorder) Record(ctx context.Context, entry audit.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type fixture struct {
	repo       *memDropsRepo
	members    *stubMemberStore
	dispatcher *fakeDispatcher
	recorder   *stubRecorder
	svc        Service
	member     *models.Member
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	member := &models.Member{
		ID:             uuid.New(),
		PhoneNumber:    "+15557654321",
		Email:          "member@example.com",
		DropsRemaining: 4,
	}
	f := &fixture{
		repo:       newMemDropsRepo(),
		members:    &stubMemberStore{members: map[uuid.UUID]*models.Member{member.ID: member}},
		dispatcher: &fakeDispatcher{},
		recorder:   &stubRecorder{},
		member:     member,
	}
	svc, err := NewService(f.repo, f.members, f.dispatcher, f.recorder, testLogger())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) seedDrop(t *testing.T, tag string, status enums.DropStatus) *models.Drop {
	t.Helper()
	drop := &models.Drop{
		ID:              uuid.New(),
		Tag:             tag,
		MemberID:        f.member.ID,
		Status:          status,
		StatusChangedAt: time.Now().UTC(),
	}
	if _, err := f.repo.Create(context.Background(), drop); err != nil {
		t.Fatalf("seed drop: %v", err)
	}
	return drop
}

func TestCreateConsumesAllowanceAndConfirms(t *testing.T) {
	f := newFixture(t)
	f.member.DropsRemaining = 1

	drop, err := f.svc.Create(context.Background(), CreateInput{
		MemberID:   f.member.ID,
		Tag:        "B007",
		OperatorID: "op-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if drop.Status != enums.DropStatusDropped {
		t.Fatalf("expected dropped, got %q", drop.Status)
	}
	if f.member.DropsRemaining != 0 {
		t.Fatalf("expected allowance 0, got %d", f.member.DropsRemaining)
	}

	scans, _ := f.repo.ListScans(context.Background(), drop.ID)
	if len(scans) != 1 || scans[0].CheckpointType != enums.CheckpointIntakeAtOrigin {
		t.Fatalf("expected one intake scan, got %+v", scans)
	}

	if len(f.dispatcher.sent) != 1 || f.dispatcher.sent[0].Kind != enums.NotificationPickupConfirm {
		t.Fatalf("expected pickup confirm dispatch, got %+v", f.dispatcher.sent)
	}

	stored, _ := f.repo.FindByID(context.Background(), drop.ID)
	if !stored.PickupConfirmSent {
		t.Fatal("expected pickup confirm flag set")
	}
}

func TestCreateRejectsExhaustedAllowance(t *testing.T) {
	f := newFixture(t)
	f.member.DropsRemaining = 0

	_, err := f.svc.Create(context.Background(), CreateInput{
		MemberID:   f.member.ID,
		Tag:        "B008",
		OperatorID: "op-1",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodePrecondition) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
	if len(f.repo.drops) != 0 {
		t.Fatal("expected no drop created")
	}
	if len(f.dispatcher.sent) != 0 {
		t.Fatal("expected no notification")
	}
}

func TestCreateRejectsInvalidTag(t *testing.T) {
	f := newFixture(t)

	for _, tag := range []string{"", "ABC", "B12345", "12a4", "!!"} {
		if _, err := f.svc.Create(context.Background(), CreateInput{MemberID: f.member.ID, Tag: tag}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("tag %q: expected validation error, got %v", tag, err)
		}
	}
}

func TestCreateRejectsTagAlreadyInPipeline(t *testing.T) {
	f := newFixture(t)
	f.seedDrop(t, "B007", enums.DropStatusAtLaundry)

	_, err := f.svc.Create(context.Background(), CreateInput{MemberID: f.member.ID, Tag: "B007"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestApplyCheckpointMovesForward(t *testing.T) {
	f := newFixture(t)
	drop := f.seedDrop(t, "B010", enums.DropStatusDropped)

	result, err := f.svc.ApplyCheckpoint(context.Background(), CheckpointInput{
		Tag:            "B010",
		CheckpointType: enums.CheckpointArriveAtFacility,
		OperatorID:     "op-2",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if result.PreviousStatus != enums.DropStatusDropped || result.NewStatus != enums.DropStatusAtLaundry {
		t.Fatalf("unexpected transition %q -> %q", result.PreviousStatus, result.NewStatus)
	}

	stored, _ := f.repo.FindByID(context.Background(), drop.ID)
	if stored.Status != enums.DropStatusAtLaundry {
		t.Fatalf("expected at_laundry, got %q", stored.Status)
	}

	var changed int
	for _, entry := range f.recorder.entries {
		if entry.Action == audit.ActionStatusChanged {
			changed++
		}
	}
	if changed != 1 {
		t.Fatalf("expected 1 status-changed audit entry, got %d", changed)
	}
}

func TestApplyCheckpointForwardOnlyProperty(t *testing.T) {
	f := newFixture(t)
	drop := f.seedDrop(t, "B011", enums.DropStatusDropped)

	// Out-of-order and replayed scans: the final status must equal the
	// maximum target applied, and every scan must be kept.
	sequence := []enums.CheckpointType{
		enums.CheckpointArriveAtFacility,
		enums.CheckpointPickupFromOrigin,
		enums.CheckpointReturnToOrigin,
		enums.CheckpointArriveAtFacility,
		enums.CheckpointDepartFacility,
	}
	for _, cp := range sequence {
		if _, err := f.svc.ApplyCheckpoint(context.Background(), CheckpointInput{
			Tag:            "B011",
			CheckpointType: cp,
			OperatorID:     "op-2",
		}); err != nil {
			t.Fatalf("apply %s: %v", cp, err)
		}
	}

	stored, _ := f.repo.FindByID(context.Background(), drop.ID)
	if stored.Status != enums.DropStatusReady {
		t.Fatalf("expected ready, got %q", stored.Status)
	}

	scans, _ := f.repo.ListScans(context.Background(), drop.ID)
	if len(scans) != len(sequence) {
		t.Fatalf("expected %d scans, got %d", len(sequence), len(scans))
	}
}

func TestApplyCheckpointReadyNotificationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seedDrop(t, "B012", enums.DropStatusReadyForDelivery)

	for i := 0; i < 2; i++ {
		if _, err := f.svc.ApplyCheckpoint(context.Background(), CheckpointInput{
			Tag:            "B012",
			CheckpointType: enums.CheckpointReturnToOrigin,
			OperatorID:     "op-2",
		}); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	var ready int
	for _, n := range f.dispatcher.sent {
		if n.Kind == enums.NotificationDropReady {
			ready++
		}
	}
	if ready != 1 {
		t.Fatalf("expected exactly one ready notification, got %d", ready)
	}
}

func TestApplyCheckpointFailedSendLeavesFlagUnset(t *testing.T) {
	f := newFixture(t)
	drop := f.seedDrop(t, "B013", enums.DropStatusReadyForDelivery)
	f.dispatcher.err = pkgerrors.New(pkgerrors.CodeAllChannelsFailed, "all channels failed")

	if _, err := f.svc.ApplyCheckpoint(context.Background(), CheckpointInput{
		Tag:            "B013",
		CheckpointType: enums.CheckpointReturnToOrigin,
		OperatorID:     "op-2",
	}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	stored, _ := f.repo.FindByID(context.Background(), drop.ID)
	if stored.ReadyNotificationSent {
		t.Fatal("flag must stay unset when every channel failed")
	}
	if stored.Status != enums.DropStatusReady {
		t.Fatalf("status change must survive a failed send, got %q", stored.Status)
	}
}

func TestApplyCheckpointErrorsHaveNoSideEffects(t *testing.T) {
	f := newFixture(t)
	f.seedDrop(t, "B014", enums.DropStatusDropped)

	_, err := f.svc.ApplyCheckpoint(context.Background(), CheckpointInput{
		Tag:            "B999",
		CheckpointType: enums.CheckpointArriveAtFacility,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = f.svc.ApplyCheckpoint(context.Background(), CheckpointInput{
		Tag:            "B014",
		CheckpointType: "teleport",
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	if len(f.repo.scans) != 0 {
		t.Fatalf("expected no scans recorded on error, got %d", len(f.repo.scans))
	}
	if len(f.recorder.entries) != 0 {
		t.Fatalf("expected no audit entries on error, got %d", len(f.recorder.entries))
	}
}

func TestCorrectStatusAllowsRegression(t *testing.T) {
	f := newFixture(t)
	drop := f.seedDrop(t, "B015", enums.DropStatusReady)

	result, err := f.svc.CorrectStatus(context.Background(), CorrectionInput{
		Tag:        "B015",
		NewStatus:  enums.DropStatusAtLaundry,
		OperatorID: "op-9",
		Reason:     "mis-scanned at facility",
	})
	if err != nil {
		t.Fatalf("correct: %v", err)
	}
	if result.NewStatus != enums.DropStatusAtLaundry {
		t.Fatalf("expected at_laundry, got %q", result.NewStatus)
	}

	stored, _ := f.repo.FindByID(context.Background(), drop.ID)
	if stored.Status != enums.DropStatusAtLaundry {
		t.Fatalf("expected regression applied, got %q", stored.Status)
	}

	if len(f.recorder.entries) != 1 || f.recorder.entries[0].Action != audit.ActionStatusCorrected {
		t.Fatalf("expected one correction audit entry, got %+v", f.recorder.entries)
	}
	if f.recorder.entries[0].Operator != "op-9" {
		t.Fatalf("correction must name the operator, got %q", f.recorder.entries[0].Operator)
	}
}

func TestValidTag(t *testing.T) {
	valid := []string{"B007", "42", "k1234", "7", " B007 "}
	for _, tag := range valid {
		if !ValidTag(tag) {
			t.Errorf("expected %q to be valid", tag)
		}
	}
	invalid := []string{"", "BB12", "12345", "B12345", "hello", "B-12"}
	for _, tag := range invalid {
		if ValidTag(tag) {
			t.Errorf("expected %q to be invalid", tag)
		}
	}
}
