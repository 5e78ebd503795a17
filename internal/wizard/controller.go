// Package wizard drives a respondent through the form's sections. Each
// Controller is one wizard session; the Registry owns the live ones.
package wizard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"discovery/api/internal/attachments"
	"discovery/api/internal/form"
	"discovery/api/internal/intake"
	"discovery/api/internal/logging"
	"discovery/api/internal/snapshot"
	"discovery/api/internal/store"
)

// Intake is the remote persistence the controller saves through.
type Intake interface {
	Save(ctx context.Context, record form.Record, section *int) (intake.SaveResult, error)
	Load(ctx context.Context, email string) (intake.Draft, bool, error)
	Submit(ctx context.Context, record form.Record) (store.Submission, error)
}

// SnapshotWriter is the local slot the controller falls back to.
type SnapshotWriter interface {
	Save(ctx context.Context, key string, snap snapshot.Snapshot) error
	Clear(ctx context.Context, key string) error
}

type Deps struct {
	Definition *form.Definition
	Intake     Intake
	Snapshots  SnapshotWriter
	Log        *logging.Logger
}

// Controller is one wizard session. mu guards the session state and is
// never held across remote calls or slot writes. opMu serializes navigation
// and the remote operations it triggers. slotMu orders writes to the local
// slot against the clear that follows a submit.
type Controller struct {
	mu         sync.Mutex
	opMu       sync.Mutex
	slotMu     sync.Mutex
	id         string
	def        *form.Definition
	intake     Intake
	snapshots  SnapshotWriter
	log        *logging.Logger
	now        func() time.Time
	lastActive time.Time

	record       form.Record
	current      int
	completed    form.Sections
	submitted    bool
	submitting   bool
	confirmation *Confirmation
	// fileGen changes whenever a file-bearing field is edited.
	fileGen uint64
}

// Confirmation identifies the persisted row after a successful submit.
type Confirmation struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// View is the read model of a session.
type View struct {
	SessionID         string        `json:"sessionId"`
	CurrentSection    int           `json:"currentSection"`
	Section           form.Section  `json:"section"`
	SectionCount      int           `json:"sectionCount"`
	CompletedSections form.Sections `json:"completedSections"`
	Progress          int           `json:"progress"`
	Record            form.Record   `json:"record"`
	Submitted         bool          `json:"submitted"`
	Confirmation      *Confirmation `json:"confirmation,omitempty"`
}

func NewController(id string, deps Deps) *Controller {
	def := deps.Definition
	if def == nil {
		def = form.DefaultDefinition()
	}
	log := deps.Log
	if log == nil {
		log = logging.Nop()
	}
	c := &Controller{
		id:        id,
		def:       def,
		intake:    deps.Intake,
		snapshots: deps.Snapshots,
		log:       log.With("component", "wizard", "session", id),
		now:       time.Now,
		record:    form.NewRecord(),
		completed: form.Sections{},
	}
	c.lastActive = c.now()
	return c
}

func (c *Controller) ID() string { return c.id }

// Restore replaces the session state with a local snapshot.
func (c *Controller) Restore(snap snapshot.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record = snap.Record.Clone()
	c.record.Normalize()
	c.current = c.clamp(snap.CurrentSection)
	c.completed = form.NewSections(snap.CompletedSections...)
	c.touch()
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view()
}

func (c *Controller) view() View {
	var confirmation *Confirmation
	if c.confirmation != nil {
		copied := *c.confirmation
		confirmation = &copied
	}
	return View{
		SessionID:         c.id,
		CurrentSection:    c.current,
		Section:           c.def.Sections[c.current],
		SectionCount:      c.def.SectionCount(),
		CompletedSections: form.NewSections(c.completed...),
		Progress:          form.Completion(c.record),
		Record:            c.record.Clone(),
		Submitted:         c.submitted,
		Confirmation:      confirmation,
	}
}

// snapshot returns the state the local slot should hold. The caller holds mu.
func (c *Controller) snapshot() snapshot.Snapshot {
	return snapshot.Snapshot{
		Record:            c.record.Clone(),
		CurrentSection:    c.current,
		CompletedSections: form.NewSections(c.completed...),
	}
}

// IdleSince reports the last time an event touched the session.
func (c *Controller) IdleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// UpdateFields merges a JSON object of record fields into the session.
// File-bearing fields are ignored; they change through StageFiles and
// RemoveFile. Unknown keys are rejected. A changed, well-formed email
// triggers the resume transition.
func (c *Controller) UpdateFields(ctx context.Context, patch []byte) (*Notice, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	for _, name := range form.AttachmentFields {
		delete(fields, name)
	}
	cleaned, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}

	c.mu.Lock()
	if err := c.editable(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	next := c.record.Clone()
	decoder := json.NewDecoder(bytes.NewReader(cleaned))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&next); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	next.Normalize()

	emailChanged := strings.TrimSpace(next.Email) != strings.TrimSpace(c.record.Email)
	c.record = next
	c.touch()
	c.mu.Unlock()

	if emailChanged {
		return c.resume(ctx), nil
	}
	return nil, nil
}

// EmailChanged sets the email and, when it is well formed, loads the
// respondent's saved draft in place of the current answers.
func (c *Controller) EmailChanged(ctx context.Context, email string) (*Notice, error) {
	c.mu.Lock()
	if err := c.editable(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.record.Email = email
	c.touch()
	c.mu.Unlock()
	return c.resume(ctx), nil
}

// resume replaces the whole record with the saved draft and moves to the
// section after the highest completed one. Unsaved edits in other fields
// are overwritten. A lookup superseded by a later email edit is dropped.
func (c *Controller) resume(ctx context.Context) *Notice {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	email := strings.TrimSpace(c.record.Email)
	submitted := c.submitted
	c.mu.Unlock()
	if submitted || !form.ValidEmail(email) {
		return nil
	}

	draft, found, err := c.intake.Load(ctx, email)
	if err != nil {
		c.log.Warn("draft lookup failed", "email", email, "error", err)
		return failure("Could not load saved progress", "Your saved progress could not be retrieved. You can keep filling out the form.")
	}
	if !found {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitted || strings.TrimSpace(c.record.Email) != email {
		return nil
	}
	c.record = draft.Record
	c.fileGen++
	c.completed = draft.Progress.CompletedSections
	c.current = draft.Progress.ResumeSection(c.def.SectionCount())
	c.log.Info("draft restored", "email", email, "section", c.current)
	return success("Progress restored", fmt.Sprintf("Welcome back! Resuming at %s.", c.def.Sections[c.current].Title))
}

// StageFiles validates incoming files against the field's constraints and
// appends the accepted ones.
func (c *Controller) StageFiles(field string, files []attachments.File) (attachments.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return attachments.Result{}, err
	}
	rule, ok := c.def.Rule(field)
	if !ok {
		return attachments.Result{}, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	list, ok := c.record.AttachmentField(field)
	if !ok {
		return attachments.Result{}, fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	result := attachments.StageMany(*list, files, attachments.FromRule(rule))
	*list = attachments.Append(*list, result.Accepted)
	c.fileGen++
	c.touch()
	return result, nil
}

func (c *Controller) RemoveFile(field string, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return err
	}
	list, ok := c.record.AttachmentField(field)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	updated, err := attachments.Remove(*list, index)
	if err != nil {
		return err
	}
	*list = updated
	c.fileGen++
	c.touch()
	return nil
}

// Next saves the current section and advances one section. A failed save
// never blocks navigation.
func (c *Controller) Next(ctx context.Context) (*Notice, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if err := c.checkEditable(); err != nil {
		return nil, err
	}
	notice := c.persist(ctx, false)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.clamp(c.current + 1)
	c.touch()
	return notice, nil
}

func (c *Controller) Previous() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.editable(); err != nil {
		return err
	}
	if c.current > 0 {
		c.current--
	}
	c.touch()
	return nil
}

// Jump saves the current section and moves to section k.
func (c *Controller) Jump(ctx context.Context, k int) (*Notice, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if err := c.checkEditable(); err != nil {
		return nil, err
	}
	if k < 0 || k >= c.def.SectionCount() {
		return nil, fmt.Errorf("%w: %d", ErrSectionOutOfRange, k)
	}
	notice := c.persist(ctx, false)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = k
	c.touch()
	return notice, nil
}

// Save persists the current section without navigating.
func (c *Controller) Save(ctx context.Context) (*Notice, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	c.mu.Lock()
	if err := c.editable(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.touch()
	c.mu.Unlock()
	return c.persist(ctx, true), nil
}

// Submit finalizes the form from the last section. Edits are refused while
// the submit is in flight. On failure the session stays where it is and the
// error is returned with its notice.
func (c *Controller) Submit(ctx context.Context) (*Notice, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if err := c.editable(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.current != c.def.LastSection() {
		c.mu.Unlock()
		return nil, ErrNotOnLastSection
	}
	c.submitting = true
	record := c.record.Clone()
	c.touch()
	c.mu.Unlock()

	sub, err := c.intake.Submit(ctx, record)

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		c.mu.Unlock()
		c.log.Warn("submission failed", "email", record.Email, "error", err)
		return failure("Submission failed", fmt.Sprintf("We could not submit your form: %v. Please try again.", err)), err
	}
	c.record = intake.FromSubmission(sub)
	c.completed = form.NewSections(sub.CompletedSections...)
	c.submitted = true
	c.confirmation = &Confirmation{ID: sub.ID, Status: sub.Status, SubmittedAt: sub.UpdatedAt}
	c.mu.Unlock()

	c.clearSlot(ctx)
	return success("Form submitted", "Thank you! Your discovery form has been submitted."), nil
}

// SaveSnapshot writes the session's state to w unless it has been
// submitted. It reports whether a write happened.
func (c *Controller) SaveSnapshot(ctx context.Context, w snapshot.Writer, at time.Time) (bool, error) {
	c.slotMu.Lock()
	defer c.slotMu.Unlock()
	c.mu.Lock()
	if c.submitted {
		c.mu.Unlock()
		return false, nil
	}
	snap := c.snapshot()
	c.mu.Unlock()

	snap.SavedAt = at
	if err := w.Save(ctx, c.id, snap); err != nil {
		return false, err
	}
	return true, nil
}

// persist saves the record remotely when an email is present and falls back
// to the local slot otherwise or on failure. A local-only write during
// navigation reports nothing; an explicit save always reports. The caller
// holds opMu.
func (c *Controller) persist(ctx context.Context, explicit bool) *Notice {
	c.mu.Lock()
	section := c.current
	record := c.record.Clone()
	gen := c.fileGen
	c.mu.Unlock()

	if strings.TrimSpace(record.Email) == "" {
		if err := c.writeLocal(ctx); err != nil {
			return failure("Save failed", "Your progress could not be saved.")
		}
		if !explicit {
			return nil
		}
		return success("Progress Saved", "Your form progress has been saved locally. Add your email to save it to the cloud.")
	}

	result, err := c.intake.Save(ctx, record, &section)
	if err != nil {
		c.log.Warn("remote save failed, keeping local copy", "email", record.Email, "section", section, "error", err)
		if localErr := c.writeLocal(ctx); localErr != nil {
			return failure("Save failed", "Your progress could not be saved to the cloud or locally.")
		}
		return degraded("Saved locally", fmt.Sprintf("Cloud save failed (%v); your progress is stored on this device.", err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Files edited during the save keep their pending entries; the next
	// save uploads them.
	if c.fileGen == gen {
		for _, name := range form.AttachmentFields {
			saved, _ := result.Record.AttachmentField(name)
			live, _ := c.record.AttachmentField(name)
			resolved := make([]form.Attachment, len(*saved))
			copy(resolved, *saved)
			*live = resolved
		}
	}
	c.completed = form.NewSections(result.Submission.CompletedSections...)
	return success("Progress Saved", "Your progress has been saved.")
}

func (c *Controller) writeLocal(ctx context.Context) error {
	if c.snapshots == nil {
		return nil
	}
	c.slotMu.Lock()
	defer c.slotMu.Unlock()
	c.mu.Lock()
	snap := c.snapshot()
	c.mu.Unlock()
	snap.SavedAt = c.now().UTC()
	if err := c.snapshots.Save(ctx, c.id, snap); err != nil {
		c.log.Warn("local snapshot failed", "error", err)
		return err
	}
	return nil
}

func (c *Controller) clearSlot(ctx context.Context) {
	if c.snapshots == nil {
		return
	}
	c.slotMu.Lock()
	defer c.slotMu.Unlock()
	if err := c.snapshots.Clear(ctx, c.id); err != nil {
		c.log.Warn("clear local snapshot failed", "error", err)
	}
}

// editable reports why the session refuses edits. The caller holds mu.
func (c *Controller) editable() error {
	switch {
	case c.submitted:
		return ErrAlreadySubmitted
	case c.submitting:
		return ErrSubmitInProgress
	}
	return nil
}

func (c *Controller) checkEditable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editable()
}

func (c *Controller) clamp(idx int) int {
	if idx < 0 {
		return 0
	}
	if last := c.def.LastSection(); idx > last {
		return last
	}
	return idx
}

func (c *Controller) touch() {
	c.lastActive = c.now()
}
