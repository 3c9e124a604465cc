package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/apierr"
)

type (
	Options struct {
		Validate   *validator.Validate // nil: no client-side validation
		Translator ut.Translator
		Logger     core.Logger
	}

	// Collection binds a Store to its remote endpoint.
	Collection[T Entity] struct {
		desc  Descriptor
		tr    Transport
		store *Store[T]
		opts  Options
	}

	// Handle is the type-erased view of a Collection used by generic callers (console, exports).
	Handle interface {
		Descriptor() Descriptor
		Load(ctx context.Context, scope Scope) (int, error)
		CreateJSON(ctx context.Context, data []byte) (Entity, error)
		UpdateJSON(ctx context.Context, id ID, data []byte) (Entity, error)
		ReplaceJSON(ctx context.Context, id ID, data []byte) (Entity, error)
		Delete(ctx context.Context, id ID) error
		DeleteMany(ctx context.Context, ids ...ID) error
		Lookup(id ID) (Entity, bool)
		Rows() ([]map[string]interface{}, error)
		Status() Status
		Err() string
		Len() int
	}
)

func NewCollection[T Entity](desc Descriptor, tr Transport, opts Options) *Collection[T] {
	err := vala.BeginValidation().Validate(
		vala.StringNotEmpty(desc.Name, "desc.Name"),
		vala.StringNotEmpty(desc.Endpoint, "desc.Endpoint"),
		vala.IsNotNil(tr, "tr"),
	).Check()
	if err != nil {
		panic(err)
	}
	if opts.Validate != nil && opts.Translator == nil {
		opts.Translator = core.NewTranslator()
	}
	return &Collection[T]{desc: desc, tr: tr, store: NewStore[T](), opts: opts}
}

func (c *Collection[T]) Descriptor() Descriptor { return c.desc }
func (c *Collection[T]) Store() *Store[T]        { return c.store }
func (c *Collection[T]) Status() Status          { return c.store.Status() }
func (c *Collection[T]) Err() string             { return c.store.Err() }
func (c *Collection[T]) Len() int                { return c.store.Len() }

// Fetch replaces the store with the current server collection.
func (c *Collection[T]) Fetch(ctx context.Context, scope Scope) ([]T, error) {
	query, err := scope.Query(c.desc)
	if err != nil {
		return nil, err
	}

	seq := c.store.BeginFetch()
	req := fetchRequest(c.desc, query)
	body, err := c.tr.Do(ctx, req)
	if err != nil {
		err = apierr.Flatten(err, req.Describe())
		c.store.FetchFailed(seq, apierr.Message(err))
		c.debug("fetch failed", req, err)
		return nil, err
	}

	items, err := Unwrap[T](body)
	if err != nil {
		c.logError(req, err)
		err = &apierr.GenericError{Status: http.StatusOK, Message: req.Describe() + " failed: unexpected response"}
		c.store.FetchFailed(seq, err.Error())
		return nil, err
	}

	c.store.FetchSucceeded(seq, items)
	return items, nil
}

// Load is Fetch without the items.
func (c *Collection[T]) Load(ctx context.Context, scope Scope) (int, error) {
	items, err := c.Fetch(ctx, scope)
	return len(items), err
}

// Create sends draft to the server and appends the entity it returns.
func (c *Collection[T]) Create(ctx context.Context, draft T) (T, error) {
	var zero T
	if err := c.validate(draft); err != nil {
		return zero, err
	}

	payload, err := draftBody(draft)
	if err != nil {
		return zero, errors.Wrapf(err, "create %s", c.desc.Label)
	}
	req := createRequest(c.desc, payload)
	body, err := c.tr.Do(ctx, req)
	if err != nil {
		return zero, c.mutationFailed(req, err)
	}

	entity, err := decodeEntity[T](body, ID{})
	if err != nil {
		return zero, c.badResponse(req, err)
	}
	if entity.Key().IsZero() {
		return zero, c.badResponse(req, errors.New("response has no identifier"))
	}

	c.store.CreateSucceeded(entity)
	return entity, nil
}

// Update sends a partial update. When the entity is cached, the patch is validated
// against the cached entity merged with it.
func (c *Collection[T]) Update(ctx context.Context, id ID, patch map[string]interface{}) (T, error) {
	var zero T
	if id.IsZero() {
		return zero, errors.Errorf("update %s: missing id", c.desc.Name)
	}

	merged, cached, err := c.merge(id, patch)
	if err != nil {
		return zero, err
	}
	if cached {
		if err := c.validate(merged); err != nil {
			return zero, err
		}
	}

	req := updateRequest(c.desc, http.MethodPatch, id, patch)
	body, err := c.tr.Do(ctx, req)
	if err != nil {
		return zero, c.mutationFailed(req, err)
	}

	if len(bytes.TrimSpace(body)) == 0 { // 204 No Content
		if !cached {
			if c.opts.Logger != nil {
				c.opts.Logger.Warn(fmt.Sprintf("resource.Collection: updated %s %s is not in store", c.desc.Label, id))
			}
			return zero, errors.Wrapf(ErrNotInStore, "update %s %s", c.desc.Label, id)
		}
		return c.reconcile(merged)
	}

	fallback := id
	if cached {
		fallback = merged.Key()
	}
	entity, err := decodeEntity[T](body, fallback)
	if err != nil {
		return zero, c.badResponse(req, err)
	}
	return c.reconcile(entity)
}

// Replace sends a full update of entity.
func (c *Collection[T]) Replace(ctx context.Context, entity T) (T, error) {
	var zero T
	id := entity.Key()
	if id.IsZero() {
		return zero, errors.Errorf("update %s: missing id", c.desc.Name)
	}
	if err := c.validate(entity); err != nil {
		return zero, err
	}

	req := updateRequest(c.desc, http.MethodPut, id, entity)
	body, err := c.tr.Do(ctx, req)
	if err != nil {
		return zero, c.mutationFailed(req, err)
	}

	updated := entity
	if len(bytes.TrimSpace(body)) > 0 {
		if updated, err = decodeEntity[T](body, id); err != nil {
			return zero, c.badResponse(req, err)
		}
	}
	return c.reconcile(updated)
}

// Delete removes the entity on the server, then from the store.
func (c *Collection[T]) Delete(ctx context.Context, id ID) error {
	if id.IsZero() {
		return errors.Errorf("delete %s: missing id", c.desc.Name)
	}

	req := deleteRequest(c.desc, id)
	if _, err := c.tr.Do(ctx, req); err != nil {
		err = apierr.Flatten(err, req.Describe())
		c.store.MutationFailed(apierr.Message(err))
		c.debug("delete failed", req, err)
		return err
	}
	c.store.DeleteSucceeded(id)
	return nil
}

// DeleteMany deletes ids one after the other. Failures do not stop the batch;
// they are reported together in a *BulkError.
func (c *Collection[T]) DeleteMany(ctx context.Context, ids ...ID) error {
	bulkErr := &BulkError{Op: OpDelete, Resource: c.desc.Name, Total: len(ids)}
	for _, id := range ids {
		if err := c.Delete(ctx, id); err != nil {
			bulkErr.add(id, err)
		}
	}
	if bulkErr.Failed() == 0 {
		return nil
	}
	c.store.MutationFailed(bulkErr.Error())
	return bulkErr
}

func (c *Collection[T]) Lookup(id ID) (Entity, bool) {
	entity, ok := c.store.Get(id)
	if !ok {
		return nil, false
	}
	return entity, true
}

func (c *Collection[T]) Rows() ([]map[string]interface{}, error) {
	return Rows(c.store.Items())
}

func (c *Collection[T]) CreateJSON(ctx context.Context, data []byte) (Entity, error) {
	var draft T
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, errors.Wrapf(err, "create %s: invalid payload", c.desc.Name)
	}
	entity, err := c.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (c *Collection[T]) UpdateJSON(ctx context.Context, id ID, data []byte) (Entity, error) {
	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return nil, errors.Wrapf(err, "update %s: invalid payload", c.desc.Name)
	}
	entity, err := c.Update(ctx, id, patch)
	if entity.Key().IsZero() {
		return nil, err
	}
	return entity, err
}

func (c *Collection[T]) ReplaceJSON(ctx context.Context, id ID, data []byte) (Entity, error) {
	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, errors.Wrapf(err, "update %s: invalid payload", c.desc.Name)
	}
	if entity.Key().IsZero() {
		if err := injectID(&entity, id); err != nil {
			return nil, err
		}
	} else if !entity.Key().Equal(id) {
		return nil, errors.Errorf("update %s: payload id %s does not match %s", c.desc.Name, entity.Key(), id)
	}

	updated, err := c.Replace(ctx, entity)
	if updated.Key().IsZero() {
		return nil, err
	}
	return updated, err
}

func (c *Collection[T]) reconcile(entity T) (T, error) {
	if err := c.store.UpdateSucceeded(entity); err != nil {
		if c.opts.Logger != nil {
			c.opts.Logger.Warn(fmt.Sprintf("resource.Collection: updated %s %s is not in store", c.desc.Label, entity.Key()))
		}
		return entity, errors.Wrapf(err, "update %s %s", c.desc.Label, entity.Key())
	}
	return entity, nil
}

func (c *Collection[T]) validate(entity T) error {
	if c.opts.Validate == nil {
		return nil
	}
	err := c.opts.Validate.Struct(entity)
	if err == nil {
		return nil
	}

	fields, ok := core.TranslateFields(err, c.opts.Translator)
	if !ok {
		return errors.Wrapf(err, "validate %s", c.desc.Label)
	}
	vErr := apierr.FromFields(fields)
	c.store.MutationFailed(vErr.Error())
	return vErr
}

// merge overlays patch on the cached entity with the same id.
func (c *Collection[T]) merge(id ID, patch map[string]interface{}) (merged T, cached bool, err error) {
	current, ok := c.store.Get(id)
	if !ok {
		return merged, false, nil
	}

	data, err := json.Marshal(current)
	if err != nil {
		return merged, false, errors.Wrapf(err, "update %s", c.desc.Label)
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return merged, false, errors.Wrapf(err, "update %s", c.desc.Label)
	}
	for key, val := range patch {
		obj[key] = val
	}
	if data, err = json.Marshal(obj); err != nil {
		return merged, false, errors.Wrapf(err, "update %s", c.desc.Label)
	}
	if err := json.Unmarshal(data, &merged); err != nil {
		return merged, false, apierr.FromFields(map[string]string{"non_field_errors": err.Error()})
	}
	return merged, true, nil
}

func (c *Collection[T]) mutationFailed(req Request, err error) error {
	err = apierr.Normalize(err)
	if !req.Op.Structured() {
		err = apierr.Flatten(err, req.Describe())
	}
	c.store.MutationFailed(apierr.Message(err))
	c.debug(string(req.Op)+" failed", req, err)
	return err
}

func (c *Collection[T]) badResponse(req Request, err error) error {
	c.logError(req, err)
	gErr := &apierr.GenericError{Status: http.StatusOK, Message: req.Describe() + " failed: unexpected response"}
	c.store.MutationFailed(gErr.Message)
	return gErr
}

func (c *Collection[T]) debug(msg string, req Request, err error) {
	if c.opts.Logger != nil {
		c.opts.Logger.Debug(fmt.Sprintf("resource.Collection: %s %s: %v", req.Method, req.Path, err), msg)
	}
}

func (c *Collection[T]) logError(req Request, err error) {
	if c.opts.Logger != nil {
		c.opts.Logger.Error(fmt.Sprintf("resource.Collection: %s %s: %v", req.Method, req.Path, err), err)
	}
}

// decodeEntity decodes a single-entity body; fallbackID is used when the body carries no id.
func decodeEntity[T Entity](body []byte, fallbackID ID) (T, error) {
	var entity T
	obj, err := UnwrapOne[map[string]json.RawMessage](body)
	if err != nil {
		return entity, err
	}
	if obj == nil {
		return entity, errors.New("resource.decodeEntity: not an object")
	}
	if raw, ok := obj["id"]; (!ok || string(raw) == "null") && !fallbackID.IsZero() {
		if obj["id"], err = json.Marshal(fallbackID); err != nil {
			return entity, errors.Wrap(err, "resource.decodeEntity")
		}
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return entity, errors.Wrap(err, "resource.decodeEntity")
	}
	if err := json.Unmarshal(data, &entity); err != nil {
		return entity, errors.Wrap(err, "resource.decodeEntity")
	}
	return entity, nil
}

// draftBody is the JSON object of a new entity, without the id the server assigns.
func draftBody[T Entity](draft T) (map[string]interface{}, error) {
	rows, err := Rows([]T{draft})
	if err != nil {
		return nil, err
	}
	if id, ok := rows[0]["id"]; ok && id == nil {
		delete(rows[0], "id")
	}
	return rows[0], nil
}

func injectID[T Entity](entity *T, id ID) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return errors.Wrap(err, "resource.injectID")
	}
	*entity, err = decodeEntity[T](data, id)
	return err
}

// Rows converts entities into row objects through their JSON form, for exports and listings.
// Numbers are kept as json.Number.
func Rows[T any](items []T) ([]map[string]interface{}, error) {
	rows := make([]map[string]interface{}, 0, len(items))
	for _, it := range items {
		data, err := json.Marshal(it)
		if err != nil {
			return nil, errors.Wrap(err, "resource.Rows")
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var row map[string]interface{}
		if err := dec.Decode(&row); err != nil {
			return nil, errors.Wrap(err, "resource.Rows")
		}
		rows = append(rows, row)
	}
	return rows, nil
}
