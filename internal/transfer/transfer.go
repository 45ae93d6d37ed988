// Package transfer moves a shopping cart item into the pantry. The pantry item is created
// first and the cart entry is removed only after that succeeds; each step fails with its
// own message so the user can tell which side changed.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cribb-companion/internal/auth"
	"cribb-companion/internal/backend"
	"cribb-companion/internal/metrics"
	"cribb-companion/internal/models"
	"cribb-companion/internal/observable"
)

// DefaultUnit is used for every transferred item; cart entries carry no unit.
const DefaultUnit = "units"

const DefaultErrorDismissAfter = 3 * time.Second

type Phase string

const (
	PhaseClosed     Phase = "closed"
	PhaseOpen       Phase = "open"
	PhaseSubmitting Phase = "submitting"
)

type Stage string

const (
	StagePantry Stage = "pantry"
	StageCart   Stage = "cart"
)

var (
	ErrNotOpen    = errors.New("no transfer is open")
	ErrSubmitting = errors.New("transfer is being submitted")
)

// ValidationError is a problem with the form the user can correct before anything is sent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// StageError is a failed backend step. After a cart failure the pantry item already exists.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	switch e.Stage {
	case StagePantry:
		return "failed to add to pantry: " + backend.Message(e.Err)
	default:
		return "failed to remove from cart: " + backend.Message(e.Err)
	}
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// State is what the UI renders for the transfer modal.
type State struct {
	Phase          Phase                    `json:"phase"`
	Item           *models.ShoppingCartItem `json:"item,omitempty"`
	Category       string                   `json:"category,omitempty"`
	ExpirationDate string                   `json:"expiration_date,omitempty"`
	Error          string                   `json:"error,omitempty"`
	// PantryItemID is set once the pantry step succeeded and only the cart step is left.
	PantryItemID string `json:"pantry_item_id,omitempty"`
}

type Pantry interface {
	Add(ctx context.Context, req models.AddPantryItemRequest) (*models.PantryItem, error)
}

type Cart interface {
	Delete(ctx context.Context, id string) error
}

type Session interface {
	CurrentUser() *models.User
}

// Journal keeps the record of transfers that left an item in both pantry and cart.
type Journal interface {
	Record(ctx context.Context, entry models.TransferJournalEntry) error
	Resolve(ctx context.Context, cartItemID string) error
}

type Config struct {
	ErrorDismissAfter time.Duration
	// Location is the calendar the expiry date is read in. Defaults to time.Local.
	Location *time.Location
}

type Transfer struct {
	pantry   Pantry
	cart     Cart
	session  Session
	journal  Journal
	validate *validator.Validate
	log      logrus.FieldLogger
	cfg      Config

	mu    sync.Mutex
	state State
	// pending is the pantry item created by an attempt whose cart removal failed, and
	// pendingGroup the group it was created in.
	pending      *models.PantryItem
	pendingGroup string
	errorSeq     int
	dismisser    *time.Timer
	value        *observable.Value[State]
}

func New(pantry Pantry, cart Cart, session Session, journal Journal, cfg Config, log logrus.FieldLogger) *Transfer {
	if cfg.ErrorDismissAfter <= 0 {
		cfg.ErrorDismissAfter = DefaultErrorDismissAfter
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	closed := State{Phase: PhaseClosed}
	return &Transfer{
		pantry:   pantry,
		cart:     cart,
		session:  session,
		journal:  journal,
		validate: validator.New(),
		log:      log.WithField("component", "transfer"),
		cfg:      cfg,
		state:    closed,
		value:    observable.NewValue(closed),
	}
}

func (t *Transfer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *Transfer) Subscribe() (<-chan State, func()) {
	return t.value.Subscribe()
}

// Open starts a transfer for item with an empty form. Opening while open replaces the item.
func (t *Transfer) Open(item models.ShoppingCartItem) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Phase == PhaseSubmitting {
		return ErrSubmitting
	}
	t.stopDismiss()
	t.pending = nil
	t.pendingGroup = ""
	t.state = State{Phase: PhaseOpen, Item: &item}
	t.publish()
	return nil
}

// Cancel closes an open transfer without any network call. It is refused while submitting.
func (t *Transfer) Cancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state.Phase {
	case PhaseSubmitting:
		return ErrSubmitting
	case PhaseClosed:
		return nil
	}
	t.close()
	return nil
}

// Reset closes the transfer whatever its phase, used on logout. A submission in progress
// still finishes against the backend but its result is discarded.
func (t *Transfer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.close()
}

// Confirm validates the form and runs the transfer. When a previous attempt already
// created the pantry item, the form is not checked again and only the cart removal is
// retried. The backend calls and the journal write run detached from ctx's cancellation;
// a caller that goes away mid-submission does not split the two steps.
func (t *Transfer) Confirm(ctx context.Context, category, expirationDate string) (*models.PantryItem, error) {
	t.mu.Lock()
	switch t.state.Phase {
	case PhaseClosed:
		t.mu.Unlock()
		return nil, ErrNotOpen
	case PhaseSubmitting:
		t.mu.Unlock()
		return nil, ErrSubmitting
	}

	item := *t.state.Item
	pending := t.pending
	retrying := pending != nil

	var req models.AddPantryItemRequest
	group := t.pendingGroup
	if !retrying {
		t.state.Category = category
		t.state.ExpirationDate = expirationDate

		var err error
		req, err = t.buildRequest(item, category, expirationDate)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				metrics.RecordTransfer("invalid")
				t.fail(err.Error())
			} else {
				t.publish()
			}
			t.mu.Unlock()
			return nil, err
		}
		group = req.GroupName
	}

	t.stopDismiss()
	t.state.Phase = PhaseSubmitting
	t.state.Error = ""
	t.publish()
	t.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	log := t.log.WithFields(logrus.Fields{
		"cart_item_id": item.ID,
		"item_name":    item.ItemName,
		"group":        group,
	})

	if !retrying {
		created, err := t.pantry.Add(ctx, req)
		if err != nil {
			stageErr := &StageError{Stage: StagePantry, Err: err}
			log.WithError(err).Warn("Transfer failed to add pantry item")
			metrics.RecordTransfer("pantry_failed")
			t.reopen(item.ID, stageErr.Error())
			return nil, stageErr
		}
		pending = created

		t.mu.Lock()
		if t.current(item.ID) {
			t.pending = created
			t.pendingGroup = group
			t.state.PantryItemID = created.ID
			t.publish()
		}
		t.mu.Unlock()
	} else {
		log.WithField("pantry_item_id", pending.ID).Info("Retrying cart removal only")
	}

	if err := t.cart.Delete(ctx, item.ID); err != nil {
		if retrying && backend.IsNotFound(err) {
			// The earlier removal reached the backend even though its answer did not.
			log.WithError(err).Info("Cart item already gone, treating retry as done")
		} else {
			stageErr := &StageError{Stage: StageCart, Err: err}
			log.WithError(err).WithField("pantry_item_id", pending.ID).Error("Item added to pantry but still in cart")
			metrics.RecordTransfer("cart_failed")
			t.record(ctx, item, group, pending, stageErr)
			t.reopen(item.ID, stageErr.Error())
			return nil, stageErr
		}
	}

	if t.journal != nil {
		if err := t.journal.Resolve(ctx, item.ID); err != nil {
			log.WithError(err).Warn("Failed to resolve transfer journal entry")
		}
	}

	metrics.RecordTransfer("success")
	log.WithField("pantry_item_id", pending.ID).Info("Cart item moved to pantry")

	t.mu.Lock()
	if t.current(item.ID) {
		t.close()
	}
	t.mu.Unlock()
	return pending, nil
}

// buildRequest runs the local checks. Callers hold mu.
func (t *Transfer) buildRequest(item models.ShoppingCartItem, category, expirationDate string) (models.AddPantryItemRequest, error) {
	var req models.AddPantryItemRequest

	if strings.TrimSpace(category) == "" {
		return req, &ValidationError{Message: "category required"}
	}

	var expiry string
	if expirationDate != "" {
		normalized, err := NormalizeExpiry(expirationDate, t.cfg.Location)
		if err != nil {
			return req, &ValidationError{Message: "invalid expiry date format"}
		}
		expiry = normalized
	}

	user := t.session.CurrentUser()
	if user == nil {
		return req, auth.ErrNotAuthenticated
	}
	if user.GroupName == "" {
		return req, &ValidationError{Message: "missing group context"}
	}

	req = models.AddPantryItemRequest{
		Name:           item.ItemName,
		Quantity:       item.Quantity,
		Unit:           DefaultUnit,
		Category:       category,
		ExpirationDate: expiry,
		GroupName:      user.GroupName,
	}
	if err := t.validate.Struct(req); err != nil {
		return req, &ValidationError{Message: fmt.Sprintf("invalid pantry item: %v", err)}
	}
	return req, nil
}

func (t *Transfer) record(ctx context.Context, item models.ShoppingCartItem, group string, created *models.PantryItem, stageErr *StageError) {
	if t.journal == nil {
		return
	}
	entry := models.TransferJournalEntry{
		ID:           uuid.NewString(),
		CartItemID:   item.ID,
		ItemName:     item.ItemName,
		GroupName:    group,
		PantryItemID: created.ID,
		Stage:        string(stageErr.Stage),
		Message:      stageErr.Error(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := t.journal.Record(ctx, entry); err != nil {
		t.log.WithError(err).WithField("cart_item_id", item.ID).Error("Failed to record transfer journal entry")
	}
}

// reopen returns a failed submission to the open form with its error showing.
func (t *Transfer) reopen(itemID, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.current(itemID) {
		return
	}
	t.state.Phase = PhaseOpen
	t.fail(message)
}

// current reports whether the submission for itemID still owns the state. Callers hold mu.
func (t *Transfer) current(itemID string) bool {
	return t.state.Phase == PhaseSubmitting && t.state.Item != nil && t.state.Item.ID == itemID
}

// fail shows message and arranges for it to clear itself. Callers hold mu.
func (t *Transfer) fail(message string) {
	t.stopDismiss()
	t.state.Error = message
	t.errorSeq++
	seq := t.errorSeq
	t.dismisser = time.AfterFunc(t.cfg.ErrorDismissAfter, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.errorSeq == seq && t.state.Error != "" {
			t.state.Error = ""
			t.publish()
		}
	})
	t.publish()
}

func (t *Transfer) stopDismiss() {
	if t.dismisser != nil {
		t.dismisser.Stop()
		t.dismisser = nil
	}
	t.errorSeq++
}

// close discards the form. Callers hold mu.
func (t *Transfer) close() {
	t.stopDismiss()
	t.pending = nil
	t.pendingGroup = ""
	t.state = State{Phase: PhaseClosed}
	t.publish()
}

func (t *Transfer) snapshot() State {
	s := t.state
	if s.Item != nil {
		item := *s.Item
		s.Item = &item
	}
	return s
}

func (t *Transfer) publish() {
	t.value.Set(t.snapshot())
}
