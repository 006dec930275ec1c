package assignment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/ogurasousui/hr-records/internal/core/auth"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type roleAuthorizer struct{}

func (roleAuthorizer) CanWrite(session *auth.Session) bool {
	return session != nil && session.Role == auth.RoleAdmin
}

type fakeAssignmentRepo struct {
	records  []*Record
	sequence int
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{}
}

func (r *fakeAssignmentRepo) Insert(_ context.Context, record *Record) (*Record, error) {
	for _, existing := range r.records {
		if existing.EmployeeID != record.EmployeeID || existing.Kind != record.Kind {
			continue
		}
		if existing.StartDate.Equal(record.StartDate) {
			return nil, ErrDuplicateEffectiveDate
		}
		if existing.EndDate == nil {
			return nil, ErrConcurrentModification
		}
	}

	clone := cloneRecord(record)
	r.sequence++
	clone.ID = fmt.Sprintf("asg-%d", r.sequence)
	r.records = append(r.records, clone)
	return cloneRecord(clone), nil
}

func (r *fakeAssignmentRepo) Close(_ context.Context, id string, endDate time.Time) error {
	for _, existing := range r.records {
		if existing.ID != id {
			continue
		}
		if existing.EndDate != nil {
			return ErrConcurrentModification
		}
		end := endDate
		existing.EndDate = &end
		return nil
	}
	return ErrNoCurrentAssignment
}

func (r *fakeAssignmentRepo) FindCurrent(_ context.Context, employeeID string, kind Kind) (*Record, error) {
	for _, existing := range r.records {
		if existing.EmployeeID == employeeID && existing.Kind == kind && existing.EndDate == nil {
			return cloneRecord(existing), nil
		}
	}
	return nil, ErrNoCurrentAssignment
}

func (r *fakeAssignmentRepo) FindCurrentForUpdate(ctx context.Context, employeeID string, kind Kind) (*Record, error) {
	return r.FindCurrent(ctx, employeeID, kind)
}

func (r *fakeAssignmentRepo) ListByEmployee(_ context.Context, employeeID string, kind Kind) ([]*Record, error) {
	var listed []*Record
	for _, existing := range r.records {
		if existing.EmployeeID == employeeID && existing.Kind == kind {
			listed = append(listed, cloneRecord(existing))
		}
	}
	sort.Slice(listed, func(i, j int) bool {
		return listed[i].StartDate.Before(listed[j].StartDate)
	})
	return listed, nil
}

func cloneRecord(record *Record) *Record {
	if record == nil {
		return nil
	}
	clone := *record
	if record.EndDate != nil {
		end := *record.EndDate
		clone.EndDate = &end
	}
	return &clone
}

func adminSession() *auth.Session {
	return &auth.Session{ID: "sess-admin", UserID: "cred-1", Username: "admin", Role: auth.RoleAdmin}
}

func memberSession() *auth.Session {
	linked := "emp-5"
	return &auth.Session{ID: "sess-member", UserID: "cred-2", Username: "member", Role: auth.RoleMember, LinkedEmployeeID: &linked}
}

func newTestService(repo Repository) *Service {
	return NewService(repo, roleAuthorizer{}, &stubClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}, nil)
}

func TestService_Assign_FirstAssignment(t *testing.T) {
	t.Parallel()

	repo := newFakeAssignmentRepo()
	svc := newTestService(repo)

	created, err := svc.Assign(context.Background(), adminSession(), " emp-5 ", KindDivision, " HR ", time.Date(2023, 1, 1, 15, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Assign returned error: %v", err)
	}

	if created.EmployeeID != "emp-5" || created.TargetID != "HR" {
		t.Fatalf("expected trimmed identifiers, got %s / %s", created.EmployeeID, created.TargetID)
	}
	if !created.StartDate.Equal(date(2023, 1, 1)) {
		t.Fatalf("expected start date normalized to midnight UTC, got %v", created.StartDate)
	}
	if !created.IsCurrent() {
		t.Fatalf("expected new assignment to be current")
	}
}

func TestService_Assign_ClosesPriorRecord(t *testing.T) {
	t.Parallel()

	repo := newFakeAssignmentRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Assign(ctx, adminSession(), "emp-5", KindDivision, "HR", date(2023, 1, 1)); err != nil {
		t.Fatalf("seed Assign returned error: %v", err)
	}

	created, err := svc.Assign(ctx, adminSession(), "emp-5", KindDivision, "IT", date(2024, 3, 1))
	if err != nil {
		t.Fatalf("Assign returned error: %v", err)
	}

	history, err := svc.GetHistory(ctx, "emp-5", KindDivision)
	if err != nil {
		t.Fatalf("GetHistory returned error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 records, got %d", len(history))
	}

	closed := history[0]
	if closed.TargetID != "HR" {
		t.Fatalf("expected first record to be HR, got %s", closed.TargetID)
	}
	if closed.EndDate == nil || !closed.EndDate.Equal(date(2024, 2, 29)) {
		t.Fatalf("expected prior record closed on 2024-02-29, got %+v", closed.EndDate)
	}
	if closed.IsCurrent() {
		t.Fatalf("expected prior record to no longer be current")
	}

	if created.TargetID != "IT" || !created.StartDate.Equal(date(2024, 3, 1)) || !created.IsCurrent() {
		t.Fatalf("unexpected new record: %+v", created)
	}
}

func TestService_Assign_RejectsBackdating(t *testing.T) {
	t.Parallel()

	repo := newFakeAssignmentRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Assign(ctx, adminSession(), "emp-5", KindDivision, "HR", date(2023, 6, 1)); err != nil {
		t.Fatalf("seed Assign returned error: %v", err)
	}

	_, err := svc.Assign(ctx, adminSession(), "emp-5", KindDivision, "IT", date(2023, 5, 31))
	if !errors.Is(err, ErrEffectiveDateBeforeCurrent) {
		t.Fatalf("expected ErrEffectiveDateBeforeCurrent, got %v", err)
	}
}

func TestService_Assign_RejectsDuplicateEffectiveDate(t *testing.T) {
	t.Parallel()

	repo := newFakeAssignmentRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Assign(ctx, adminSession(), "emp-5", KindJobTitle, "engineer", date(2023, 6, 1)); err != nil {
		t.Fatalf("seed Assign returned error: %v", err)
	}

	_, err := svc.Assign(ctx, adminSession(), "emp-5", KindJobTitle, "manager", date(2023, 6, 1))
	if !errors.Is(err, ErrDuplicateEffectiveDate) {
		t.Fatalf("expected ErrDuplicateEffectiveDate, got %v", err)
	}
}

func TestService_Assign_RequiresWriteCapability(t *testing.T) {
	t.Parallel()

	repo := newFakeAssignmentRepo()
	svc := newTestService(repo)

	if _, err := svc.Assign(context.Background(), memberSession(), "emp-5", KindDivision, "HR", date(2023, 1, 1)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for member, got %v", err)
	}
	if _, err := svc.Assign(context.Background(), nil, "emp-5", KindDivision, "HR", date(2023, 1, 1)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized for nil session, got %v", err)
	}
}

func TestService_Assign_ValidatesInput(t *testing.T) {
	t.Parallel()

	repo := newFakeAssignmentRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Assign(ctx, adminSession(), "  ", KindDivision, "HR", date(2023, 1, 1)); !errors.Is(err, ErrInvalidEmployeeID) {
		t.Fatalf("expected ErrInvalidEmployeeID, got %v", err)
	}
	if _, err := svc.Assign(ctx, adminSession(), "emp-5", Kind("team"), "HR", date(2023, 1, 1)); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
	if _, err := svc.Assign(ctx, adminSession(), "emp-5", KindDivision, "  ", date(2023, 1, 1)); !errors.Is(err, ErrInvalidTargetID) {
		t.Fatalf("expected ErrInvalidTargetID, got %v", err)
	}
	if _, err := svc.Assign(ctx, adminSession(), "emp-5", KindDivision, "HR", time.Time{}); !errors.Is(err, ErrInvalidEffectiveDate) {
		t.Fatalf("expected ErrInvalidEffectiveDate, got %v", err)
	}
}

func TestService_End(t *testing.T) {
	t.Parallel()

	repo := newFakeAssignmentRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	if _, err := svc.Assign(ctx, adminSession(), "emp-5", KindDivision, "HR", date(2023, 1, 1)); err != nil {
		t.Fatalf("seed Assign returned error: %v", err)
	}

	if err := svc.End(ctx, adminSession(), "emp-5", KindDivision, date(2024, 6, 30)); err != nil {
		t.Fatalf("End returned error: %v", err)
	}

	current, err := svc.GetCurrent(ctx, "emp-5", KindDivision)
	if err != nil {
		t.Fatalf("GetCurrent returned error: %v", err)
	}
	if current != nil {
		t.Fatalf("expected no current assignment after End, got %+v", current)
	}

	history, err := svc.GetHistory(ctx, "emp-5", KindDivision)
	if err != nil {
		t.Fatalf("GetHistory returned error: %v", err)
	}
	if len(history) != 1 || history[0].EndDate == nil || !history[0].EndDate.Equal(date(2024, 6, 30)) {
		t.Fatalf("unexpected history after End: %+v", history[0])
	}
}

func TestService_End_Errors(t *testing.T) {
	t.Parallel()

	repo := newFakeAssignmentRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	if err := svc.End(ctx, adminSession(), "emp-5", KindDivision, date(2024, 6, 30)); !errors.Is(err, ErrNoCurrentAssignment) {
		t.Fatalf("expected ErrNoCurrentAssignment, got %v", err)
	}

	if _, err := svc.Assign(ctx, adminSession(), "emp-5", KindDivision, "HR", date(2024, 1, 1)); err != nil {
		t.Fatalf("seed Assign returned error: %v", err)
	}

	if err := svc.End(ctx, adminSession(), "emp-5", KindDivision, date(2023, 12, 31)); !errors.Is(err, ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}

	if err := svc.End(ctx, memberSession(), "emp-5", KindDivision, date(2024, 6, 30)); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestService_GetCurrent_NoAssignment(t *testing.T) {
	t.Parallel()

	repo := newFakeAssignmentRepo()
	svc := newTestService(repo)

	current, err := svc.GetCurrent(context.Background(), "emp-404", KindDivision)
	if err != nil {
		t.Fatalf("GetCurrent returned error: %v", err)
	}
	if current != nil {
		t.Fatalf("expected nil for missing assignment, got %+v", current)
	}
}

func TestService_History_SingleCurrentInvariant(t *testing.T) {
	t.Parallel()

	repo := newFakeAssignmentRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	starts := []time.Time{
		date(2020, 1, 1),
		date(2021, 4, 1),
		date(2022, 10, 1),
		date(2024, 2, 1),
	}
	for i, start := range starts {
		if _, err := svc.Assign(ctx, adminSession(), "emp-7", KindJobTitle, fmt.Sprintf("title-%d", i), start); err != nil {
			t.Fatalf("Assign %d returned error: %v", i, err)
		}
	}

	history, err := svc.GetHistory(ctx, "emp-7", KindJobTitle)
	if err != nil {
		t.Fatalf("GetHistory returned error: %v", err)
	}
	if len(history) != len(starts) {
		t.Fatalf("expected %d records, got %d", len(starts), len(history))
	}

	open := 0
	for i, record := range history {
		if !record.StartDate.Equal(normalizeDate(starts[i])) {
			t.Fatalf("expected ascending history, got %v at index %d", record.StartDate, i)
		}
		if record.IsCurrent() {
			open++
		}
		if i > 0 && Overlaps(history[i-1].StartDate, history[i-1].EndDate, record.StartDate, record.EndDate) {
			t.Fatalf("expected non-overlapping windows, found overlap at index %d", i)
		}
	}
	if open != 1 {
		t.Fatalf("expected exactly one current record, got %d", open)
	}
}

// listInjectingRepo はコミット前検証の時点で別の書き込みが挟まった状況を再現します。
type listInjectingRepo struct {
	*fakeAssignmentRepo
	extra *Record
}

func (r *listInjectingRepo) ListByEmployee(ctx context.Context, employeeID string, kind Kind) ([]*Record, error) {
	listed, err := r.fakeAssignmentRepo.ListByEmployee(ctx, employeeID, kind)
	if err != nil {
		return nil, err
	}
	if r.extra != nil {
		listed = append(listed, cloneRecord(r.extra))
		sort.Slice(listed, func(i, j int) bool {
			return listed[i].StartDate.Before(listed[j].StartDate)
		})
	}
	return listed, nil
}

func TestService_Assign_DetectsConcurrentCurrent(t *testing.T) {
	t.Parallel()

	repo := &listInjectingRepo{
		fakeAssignmentRepo: newFakeAssignmentRepo(),
		extra: &Record{
			ID:         "asg-foreign",
			EmployeeID: "emp-5",
			Kind:       KindDivision,
			TargetID:   "OPS",
			StartDate:  date(2022, 1, 1),
		},
	}
	svc := newTestService(repo)

	_, err := svc.Assign(context.Background(), adminSession(), "emp-5", KindDivision, "HR", date(2023, 1, 1))
	if !errors.Is(err, ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
}
