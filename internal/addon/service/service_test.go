package service_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mesaops/mesa/internal/addon/cache"
	"github.com/mesaops/mesa/internal/addon/domain"
	"github.com/mesaops/mesa/internal/addon/draft"
	addonservice "github.com/mesaops/mesa/internal/addon/service"
	auditdomain "github.com/mesaops/mesa/internal/audit/domain"
	"github.com/mesaops/mesa/internal/branch"
	"github.com/mesaops/mesa/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeContract is an in-memory stand-in for the remote addon resource.
type fakeContract struct {
	mu          sync.Mutex
	catalog     []domain.CatalogAddon
	assignments map[int64]domain.Assignment
	nextID      int64
	calls       map[string]int
	failWith    map[string]error

	// onCreate runs at the top of CreateAssignment, outside the lock.
	// Tests use it to hold a mutation in flight.
	onCreate func()
}

func newFakeContract(catalog []domain.CatalogAddon) *fakeContract {
	return &fakeContract{
		catalog:     catalog,
		assignments: make(map[int64]domain.Assignment),
		nextID:      1000,
		calls:       make(map[string]int),
		failWith:    make(map[string]error),
	}
}

func (f *fakeContract) count(op string) {
	f.calls[op]++
}

func (f *fakeContract) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeContract) fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWith[op] = err
}

func (f *fakeContract) ListCatalog(ctx context.Context) ([]domain.CatalogAddon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("list_catalog")
	if err := f.failWith["list_catalog"]; err != nil {
		return nil, err
	}
	return append([]domain.CatalogAddon(nil), f.catalog...), nil
}

func (f *fakeContract) ListAssignments(ctx context.Context, hostProductID int64) ([]domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("list_assignments")
	if err := f.failWith["list_assignments"]; err != nil {
		return nil, err
	}
	var out []domain.Assignment
	for _, a := range f.assignments {
		if a.HostProductID == hostProductID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeContract) ListGrouped(ctx context.Context, hostProductID int64) ([]domain.AssignmentGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("list_grouped")
	byTag := make(map[string]*domain.AssignmentGroup)
	var order []string
	for _, a := range f.assignments {
		if a.HostProductID != hostProductID {
			continue
		}
		group, ok := byTag[a.GroupTag]
		if !ok {
			group = &domain.AssignmentGroup{GroupTag: a.GroupTag, IsGroupRequired: a.IsGroupRequired}
			byTag[a.GroupTag] = group
			order = append(order, a.GroupTag)
		}
		group.Assignments = append(group.Assignments, a)
	}
	out := make([]domain.AssignmentGroup, 0, len(order))
	for _, tag := range order {
		out = append(out, *byTag[tag])
	}
	return out, nil
}

func (f *fakeContract) GetAssignment(ctx context.Context, assignmentID int64) (*domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("get_assignment")
	a, ok := f.assignments[assignmentID]
	if !ok {
		return nil, domain.ErrInvalidAssignment
	}
	return &a, nil
}

func (f *fakeContract) CreateAssignment(ctx context.Context, dto domain.CreateAssignmentDto) (*domain.Assignment, error) {
	if f.onCreate != nil {
		f.onCreate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("create")
	if err := f.failWith["create"]; err != nil {
		return nil, err
	}
	f.nextID++
	price := dto.SpecialPrice
	text := dto.MarketingText
	a := domain.Assignment{
		ID:              f.nextID,
		HostProductID:   dto.HostProductID,
		AddonProductID:  dto.AddonProductID,
		IsActive:        dto.IsActive,
		SpecialPrice:    &price,
		MarketingText:   &text,
		MinQuantity:     dto.MinQuantity,
		MaxQuantity:     dto.MaxQuantity,
		GroupTag:        dto.GroupTag,
		IsGroupRequired: dto.IsGroupRequired,
	}
	f.assignments[a.ID] = a
	return &a, nil
}

func (f *fakeContract) UpdateAssignment(ctx context.Context, assignmentID int64, dto domain.UpdateAssignmentDto) (*domain.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("update")
	if err := f.failWith["update"]; err != nil {
		return nil, err
	}
	a, ok := f.assignments[assignmentID]
	if !ok {
		return nil, domain.ErrInvalidAssignment
	}
	price := dto.SpecialPrice
	text := dto.MarketingText
	a.IsActive = dto.IsActive
	a.SpecialPrice = &price
	a.MarketingText = &text
	a.MinQuantity = dto.MinQuantity
	a.MaxQuantity = dto.MaxQuantity
	a.GroupTag = dto.GroupTag
	a.IsGroupRequired = dto.IsGroupRequired
	f.assignments[assignmentID] = a
	return &a, nil
}

func (f *fakeContract) DeleteAssignment(ctx context.Context, assignmentID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("delete")
	if err := f.failWith["delete"]; err != nil {
		return err
	}
	delete(f.assignments, assignmentID)
	return nil
}

func (f *fakeContract) BatchUpdate(ctx context.Context, dto domain.BatchUpdateDto) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("batch_update")
	if err := f.failWith["batch_update"]; err != nil {
		return err
	}
	for _, entry := range dto.Addons {
		for id, a := range f.assignments {
			if a.HostProductID != dto.HostProductID || a.AddonProductID != entry.AddonProductID {
				continue
			}
			price := entry.SpecialPrice
			text := entry.MarketingText
			a.IsActive = entry.IsActive
			a.DisplayOrder = entry.DisplayOrder
			a.SpecialPrice = &price
			a.MarketingText = &text
			a.MinQuantity = entry.MinQuantity
			a.MaxQuantity = entry.MaxQuantity
			a.GroupTag = entry.GroupTag
			a.IsGroupRequired = entry.IsGroupRequired
			f.assignments[id] = a
		}
	}
	return nil
}

func (f *fakeContract) Reorder(ctx context.Context, hostProductID int64, entries []domain.ReorderEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("reorder")
	if err := f.failWith["reorder"]; err != nil {
		return err
	}
	for _, entry := range entries {
		a, ok := f.assignments[entry.AssignmentID]
		if !ok {
			continue
		}
		a.DisplayOrder = entry.DisplayOrder
		f.assignments[entry.AssignmentID] = a
	}
	return nil
}

func testCatalog() []domain.CatalogAddon {
	return []domain.CatalogAddon{
		{HostProductID: 7, AddonProductID: 1, Name: "Extra cheese", Price: decimal.NewFromFloat(2.50), DefaultPhrase: "Add cheese?", SuggestedOrder: 1},
		{HostProductID: 7, AddonProductID: 2, Name: "Garlic dip", Price: decimal.NewFromFloat(1.00), DefaultPhrase: "Fancy a dip?", SuggestedOrder: 2},
		{HostProductID: 7, AddonProductID: 3, Name: "Chili flakes", Price: decimal.NewFromFloat(0.50), DefaultPhrase: "Like it hot?", SuggestedOrder: 3},
		{HostProductID: 8, AddonProductID: 4, Name: "Other host", Price: decimal.NewFromInt(1)},
	}
}

func newTestService(t *testing.T, contract domain.Contract) domain.Service {
	t.Helper()
	cfg := config.Config{CatalogCacheTTL: time.Minute}
	return addonservice.New(addonservice.Params{
		Log:      zaptest.NewLogger(t),
		Contract: contract,
		Defaults: config.StaticAddonDefaults(config.DefaultAddonDefaults()),
		Branches: branch.NewResolver(cfg),
		Catalog:  cache.NewCatalogCache(cfg, nil, zaptest.NewLogger(t)),
	})
}

func findRow(t *testing.T, rows []domain.WorkingRow, addonProductID int64) domain.WorkingRow {
	t.Helper()
	for _, row := range rows {
		if row.AddonProductID == addonProductID {
			return row
		}
	}
	t.Fatalf("addon %d not in view", addonProductID)
	return domain.WorkingRow{}
}

func TestWorkingViewLoadsOnceAndCachesCatalog(t *testing.T) {
	contract := newFakeContract(testCatalog())
	svc := newTestService(t, contract)
	ctx := context.Background()

	rows, err := svc.WorkingView(ctx, 7, false)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, 1, contract.callCount("list_catalog"))
	assert.Equal(t, 1, contract.callCount("list_assignments"))

	// Held view is reused without a remote round trip.
	_, err = svc.WorkingView(ctx, 7, false)
	require.NoError(t, err)
	assert.Equal(t, 1, contract.callCount("list_catalog"))
	assert.Equal(t, 1, contract.callCount("list_assignments"))

	// Refresh refetches assignments but hits the catalog cache.
	_, err = svc.WorkingView(ctx, 7, true)
	require.NoError(t, err)
	assert.Equal(t, 1, contract.callCount("list_catalog"))
	assert.Equal(t, 2, contract.callCount("list_assignments"))
}

func TestAssignConfirmsFromReload(t *testing.T) {
	contract := newFakeContract(testCatalog())
	svc := newTestService(t, contract)
	ctx := context.Background()

	rows, err := svc.Assign(ctx, 7, 2)
	require.NoError(t, err)

	row := findRow(t, rows, 2)
	require.True(t, row.IsAssigned())
	assert.True(t, row.IsActive)
	assert.True(t, row.Confirmed.SpecialPrice.Equal(decimal.NewFromFloat(1.00)))
	assert.Equal(t, "Fancy a dip?", row.Confirmed.MarketingText)
	assert.Equal(t, 0, row.Confirmed.MinQuantity)
	assert.Equal(t, 10, row.Confirmed.MaxQuantity)
	assert.False(t, draft.IsDirty(row))
}

func TestAssignRejectsAssignedRow(t *testing.T) {
	contract := newFakeContract(testCatalog())
	svc := newTestService(t, contract)
	ctx := context.Background()

	_, err := svc.Assign(ctx, 7, 2)
	require.NoError(t, err)

	_, err = svc.Assign(ctx, 7, 2)
	assert.ErrorIs(t, err, domain.ErrAlreadyAssigned)
	assert.Equal(t, 1, contract.callCount("create"))
}

func TestFailedMutationLeavesViewUntouched(t *testing.T) {
	contract := newFakeContract(testCatalog())
	svc := newTestService(t, contract)
	ctx := context.Background()

	before, err := svc.WorkingView(ctx, 7, false)
	require.NoError(t, err)

	contract.fail("create", domain.ErrInvalidAssignment)
	_, err = svc.Assign(ctx, 7, 2)
	require.Error(t, err)

	after, err := svc.WorkingView(ctx, 7, false)
	require.NoError(t, err)
	assert.Equal(t, before, after, "failed mutation must not change the held view")
	assert.False(t, findRow(t, after, 2).IsAssigned())
}

func TestUnassignRemovesAssignment(t *testing.T) {
	contract := newFakeContract(testCatalog())
	svc := newTestService(t, contract)
	ctx := context.Background()

	rows, err := svc.Assign(ctx, 7, 2)
	require.NoError(t, err)
	assignmentID := *findRow(t, rows, 2).AssignmentID

	rows, err = svc.Unassign(ctx, 7, assignmentID)
	require.NoError(t, err)

	row := findRow(t, rows, 2)
	assert.False(t, row.IsAssigned())
	assert.False(t, row.IsActive)

	_, err = svc.Unassign(ctx, 7, assignmentID)
	assert.ErrorIs(t, err, domain.ErrNotAssigned)
}

func TestEditThenSaveRoundTripsZeroPrice(t *testing.T) {
	contract := newFakeContract(testCatalog())
	svc := newTestService(t, contract)
	ctx := context.Background()

	rows, err := svc.Assign(ctx, 7, 1)
	require.NoError(t, err)
	assignmentID := *findRow(t, rows, 1).AssignmentID

	row, err := svc.EditField(ctx, 7, 1, draft.FieldSpecialPrice, "0")
	require.NoError(t, err)
	assert.True(t, draft.IsDirty(*row))
	assert.True(t, row.Edited.SpecialPrice.IsZero())

	rows, err = svc.Save(ctx, 7, assignmentID)
	require.NoError(t, err)

	saved := findRow(t, rows, 1)
	assert.True(t, saved.Confirmed.SpecialPrice.IsZero(), "zero price must survive the save round trip")
	assert.False(t, draft.IsDirty(saved), "reload must clear dirtiness")
}

func TestSaveValidatesBeforeRemoteCall(t *testing.T) {
	contract := newFakeContract(testCatalog())
	svc := newTestService(t, contract)
	ctx := context.Background()

	rows, err := svc.Assign(ctx, 7, 1)
	require.NoError(t, err)
	assignmentID := *findRow(t, rows, 1).AssignmentID

	_, err = svc.EditField(ctx, 7, 1, draft.FieldMinQuantity, 9)
	require.NoError(t, err)
	_, err = svc.EditField(ctx, 7, 1, draft.FieldMaxQuantity, 2)
	require.NoError(t, err)

	_, err = svc.Save(ctx, 7, assignmentID)
	assert.ErrorIs(t, err, domain.ErrQuantityRange)
	assert.Equal(t, 0, contract.callCount("update"))
}

func TestBatchSaveSendsOnlyDirtyRows(t *testing.T) {
	contract := newFakeContract(testCatalog())
	svc := newTestService(t, contract)
	ctx := context.Background()

	_, err := svc.Assign(ctx, 7, 1)
	require.NoError(t, err)
	_, err = svc.Assign(ctx, 7, 2)
	require.NoError(t, err)

	_, err = svc.BatchSave(ctx, 7)
	assert.ErrorIs(t, err, domain.ErrNothingToSave)
	assert.Equal(t, 0, contract.callCount("batch_update"))

	_, err = svc.EditField(ctx, 7, 1, draft.FieldGroupTag, "toppings")
	require.NoError(t, err)

	rows, err := svc.BatchSave(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, contract.callCount("batch_update"))

	saved := findRow(t, rows, 1)
	assert.Equal(t, "toppings", saved.Confirmed.GroupTag)
	assert.False(t, draft.IsDirty(saved))

	untouched := findRow(t, rows, 2)
	assert.Equal(t, "", untouched.Confirmed.GroupTag)
}

func TestReorderRequiresExactAssignmentCoverage(t *testing.T) {
	contract := newFakeContract(testCatalog())
	svc := newTestService(t, contract)
	ctx := context.Background()

	rows, err := svc.Assign(ctx, 7, 1)
	require.NoError(t, err)
	first := *findRow(t, rows, 1).AssignmentID

	rows, err = svc.Assign(ctx, 7, 2)
	require.NoError(t, err)
	second := *findRow(t, rows, 2).AssignmentID

	_, err = svc.Reorder(ctx, 7, []int64{first})
	assert.ErrorIs(t, err, domain.ErrInvalidAssignment, "partial coverage")

	_, err = svc.Reorder(ctx, 7, []int64{first, first})
	assert.ErrorIs(t, err, domain.ErrInvalidAssignment, "duplicate id")

	_, err = svc.Reorder(ctx, 7, []int64{first, 99999})
	assert.ErrorIs(t, err, domain.ErrInvalidAssignment, "unknown id")
	assert.Equal(t, 0, contract.callCount("reorder"))

	rows, err = svc.Reorder(ctx, 7, []int64{second, first})
	require.NoError(t, err)
	assert.Equal(t, 0, findRow(t, rows, 2).DisplayOrder)
	assert.Equal(t, 1, findRow(t, rows, 1).DisplayOrder)
}

func TestRowBusyWhileMutationInFlight(t *testing.T) {
	contract := newFakeContract(testCatalog())
	svc := newTestService(t, contract)
	ctx := context.Background()

	// Warm the view first so both goroutines operate on the held state.
	_, err := svc.WorkingView(ctx, 7, false)
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	contract.onCreate = func() {
		close(entered)
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Assign(ctx, 7, 2)
		done <- err
	}()

	<-entered

	_, err = svc.EditField(ctx, 7, 2, draft.FieldGroupTag, "late edit")
	assert.ErrorIs(t, err, domain.ErrRowBusy)

	// A different row is not gated.
	_, err = svc.EditField(ctx, 7, 3, draft.FieldGroupTag, "other row")
	assert.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	// The gate clears once the mutation completes.
	rows, err := svc.WorkingView(ctx, 7, false)
	require.NoError(t, err)
	_, err = svc.Unassign(ctx, 7, *findRow(t, rows, 2).AssignmentID)
	assert.NoError(t, err)
}

func TestConcurrentMutationsOnDifferentRowsBothLand(t *testing.T) {
	contract := newFakeContract(testCatalog())
	svc := newTestService(t, contract)
	ctx := context.Background()

	rows, err := svc.Assign(ctx, 7, 1)
	require.NoError(t, err)
	firstAssignment := *findRow(t, rows, 1).AssignmentID

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.Assign(ctx, 7, 2)
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := svc.Unassign(ctx, 7, firstAssignment)
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// Both effects survive regardless of which reload landed last.
	rows, err = svc.WorkingView(ctx, 7, false)
	require.NoError(t, err)
	assert.False(t, findRow(t, rows, 1).IsAssigned())
	assert.True(t, findRow(t, rows, 2).IsAssigned())
}

func TestGroupedCollectsEveryAssignment(t *testing.T) {
	contract := newFakeContract(testCatalog())
	svc := newTestService(t, contract)
	ctx := context.Background()

	for _, addonProductID := range []int64{1, 2, 3} {
		_, err := svc.Assign(ctx, 7, addonProductID)
		require.NoError(t, err)
	}

	tags := map[int64]string{1: "sauces", 2: "sauces", 3: "dips"}
	for addonProductID, tag := range tags {
		row, err := svc.EditField(ctx, 7, addonProductID, draft.FieldGroupTag, tag)
		require.NoError(t, err)
		_, err = svc.Save(ctx, 7, *row.AssignmentID)
		require.NoError(t, err)
	}

	groups, err := svc.Grouped(ctx, 7)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	byTag := make(map[string][]domain.Assignment, len(groups))
	total := 0
	for _, g := range groups {
		byTag[g.GroupTag] = g.Assignments
		total += len(g.Assignments)
	}
	assert.Equal(t, 3, total, "every assignment must land in exactly one group")
	assert.Len(t, byTag["sauces"], 2)
	assert.Len(t, byTag["dips"], 1)
}

func TestEditFieldOnUnknownRow(t *testing.T) {
	contract := newFakeContract(testCatalog())
	svc := newTestService(t, contract)

	_, err := svc.EditField(context.Background(), 7, 999, draft.FieldGroupTag, "x")
	assert.ErrorIs(t, err, domain.ErrRowNotFound)
}

func TestInputValidation(t *testing.T) {
	contract := newFakeContract(testCatalog())
	svc := newTestService(t, contract)
	ctx := context.Background()

	_, err := svc.WorkingView(ctx, 0, false)
	assert.ErrorIs(t, err, domain.ErrInvalidHostProduct)

	_, err = svc.Assign(ctx, 7, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAddonProduct)

	_, err = svc.Unassign(ctx, 7, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidAssignment)

	_, err = svc.Assignment(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAssignment)
}

type recordedAudit struct {
	action     string
	targetType string
	targetID   string
	metadata   map[string]any
}

type fakeAuditService struct {
	mu      sync.Mutex
	records []recordedAudit
}

func (f *fakeAuditService) Record(ctx context.Context, action, targetType, targetID string, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, recordedAudit{action, targetType, targetID, metadata})
	return nil
}

func (f *fakeAuditService) List(ctx context.Context, req auditdomain.ListRequest) ([]auditdomain.AuditLog, error) {
	return nil, nil
}

func TestMutationsLeaveAuditTrail(t *testing.T) {
	contract := newFakeContract(testCatalog())
	audit := &fakeAuditService{}
	cfg := config.Config{CatalogCacheTTL: time.Minute}
	svc := addonservice.New(addonservice.Params{
		Log:      zaptest.NewLogger(t),
		Contract: contract,
		Defaults: config.StaticAddonDefaults(config.DefaultAddonDefaults()),
		Branches: branch.NewResolver(cfg),
		Catalog:  cache.NewCatalogCache(cfg, nil, zaptest.NewLogger(t)),
		AuditSvc: audit,
	})
	ctx := context.Background()

	rows, err := svc.Assign(ctx, 7, 2)
	require.NoError(t, err)
	row := findRow(t, rows, 2)
	require.True(t, row.IsAssigned())

	_, err = svc.Unassign(ctx, 7, *row.AssignmentID)
	require.NoError(t, err)

	require.Len(t, audit.records, 2)
	assert.Equal(t, auditdomain.ActionAssign, audit.records[0].action)
	assert.Equal(t, auditdomain.TargetAssignment, audit.records[0].targetType)
	assert.Equal(t, strconv.FormatInt(*row.AssignmentID, 10), audit.records[0].targetID)
	assert.Equal(t, int64(7), audit.records[0].metadata["host_product_id"])
	assert.Equal(t, auditdomain.ActionUnassign, audit.records[1].action)
	assert.Equal(t, strconv.FormatInt(*row.AssignmentID, 10), audit.records[1].targetID)

	// A failed mutation does not record.
	contract.fail("create", domain.ErrInvalidAssignment)
	_, err = svc.Assign(ctx, 7, 1)
	require.Error(t, err)
	assert.Len(t, audit.records, 2)
}
