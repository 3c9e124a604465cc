package echoapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/billing"
	"github.com/gachaupg/shuletrack/core/comms"
	"github.com/gachaupg/shuletrack/core/document"
	"github.com/gachaupg/shuletrack/core/fleet"
	"github.com/gachaupg/shuletrack/core/resource"
	"github.com/gachaupg/shuletrack/core/student"
	"github.com/gachaupg/shuletrack/core/user"
)

var errNoSchool = core.NewValidationError(nil, core.FieldError{Field: "school", Error: "school is required"})

type (
	resourceSpec struct {
		desc       resource.Descriptor
		validate   func(payload map[string]interface{}) error
		writeRoles []string // on top of admins
	}

	resourceApi struct {
		deps     *Deps
		envelope envelope
	}
)

func resourceSpecs(validate *validator.Validate) []resourceSpec {
	return []resourceSpec{
		{desc: student.Descriptor, validate: typed[student.Student](validate), writeRoles: []string{user.RoleTeacher}},
		{desc: student.GradeDescriptor, validate: typed[student.Grade](validate), writeRoles: []string{user.RoleTeacher}},
		{desc: student.ParentDescriptor, validate: typed[student.Parent](validate), writeRoles: []string{user.RoleTeacher}},
		{desc: user.StaffDescriptor, validate: typed[user.Staff](validate)},
		{desc: fleet.RouteDescriptor, validate: typed[fleet.Route](validate)},
		{desc: fleet.StopDescriptor, validate: typed[fleet.RouteStop](validate)},
		{desc: fleet.VehicleDescriptor, validate: typed[fleet.Vehicle](validate)},
		{desc: fleet.TripDescriptor, validate: typed[fleet.Trip](validate), writeRoles: []string{user.RoleDriver, user.RoleAssistant}},
		{desc: comms.NotificationDescriptor, validate: typed[comms.Notification](validate), writeRoles: []string{user.RoleTeacher}},
		{desc: comms.ContactDescriptor, validate: typed[comms.ContactMessage](validate)},
		{desc: billing.InvoiceDescriptor, validate: typed[billing.Invoice](validate), writeRoles: []string{user.RoleAccountant}},
		{desc: billing.SubscriptionDescriptor, validate: typed[billing.Subscription](validate), writeRoles: []string{user.RoleAccountant}},
		{desc: billing.PlanDescriptor, validate: typed[billing.Plan](validate)},
	}
}

// typed validates a payload against the rules of the entity type T.
func typed[T any](validate *validator.Validate) func(map[string]interface{}) error {
	return func(payload map[string]interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(err, "encoding payload")
		}
		var entity T
		if err = json.Unmarshal(data, &entity); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field != "" {
				return core.NewValidationError(err, core.FieldError{Field: typeErr.Field, Error: "invalid value"})
			}
			return core.NewValidationError(errors.New("invalid payload"))
		}
		if cl, ok := interface{}(&entity).(interface{ Clean() }); ok {
			cl.Clean()
		}
		return validate.Struct(&entity)
	}
}

func registerResourceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps, env envelope) {
	api := resourceApi{deps: deps, envelope: env}

	for _, spec := range resourceSpecs(deps.Validate) {
		spec := spec
		write := rolesMiddleware(spec.writeRoles...)

		rg := g.Group("/"+spec.desc.Endpoint, jwt)
		rg.GET("", api.query(spec))
		rg.POST("", api.create(spec), write)

		// detail endpoints
		dg := rg.Group("/:id", api.objectMiddleware(spec))
		dg.GET("", api.retrieve(spec))
		dg.PUT("", api.replace(spec), write)
		dg.PATCH("", api.patch(spec), write)
		dg.DELETE("", api.destroy(spec), write)
	}
}

// bindPayload decodes the JSON object body. An empty body is an empty object.
func bindPayload(ctx echo.Context) (map[string]interface{}, error) {
	payload := make(map[string]interface{})
	if err := json.NewDecoder(ctx.Request().Body).Decode(&payload); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decoding payload")
	}
	return payload, nil
}

// Handlers

func (api *resourceApi) query(spec resourceSpec) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		school, err := api.school(ctx, spec, nil)
		if err != nil {
			return err
		}
		ordering := new(Ordering)
		ordering.Bind(ctx)

		docs, err := api.deps.Docs.Query(ctx.Request().Context(), document.QueryFilter{
			Resource: spec.desc.Name,
			School:   school,
			Ordering: ordering.Orderings,
		})
		if err != nil {
			if errors.Cause(err) == document.ErrInvalidField {
				return core.NewValidationError(nil, core.FieldError{Field: orderingParam, Error: "invalid ordering"})
			}
			return errors.Wrapf(err, "querying %s", spec.desc.Name)
		}

		items := make([]map[string]interface{}, 0, len(docs))
		for _, doc := range docs {
			items = append(items, doc.JSON())
		}
		return ctx.JSON(http.StatusOK, api.envelope.list(items))
	}
}

func (api *resourceApi) create(spec resourceSpec) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		payload, err := bindPayload(ctx)
		if err != nil {
			return err
		}
		school, err := api.school(ctx, spec, payload)
		if err != nil {
			return err
		}
		if spec.desc.Scoped {
			payload["school"] = school
		}
		if err = spec.validate(payload); err != nil {
			return err
		}

		doc, err := api.deps.Docs.Create(ctx.Request().Context(), document.FromJSON(spec.desc.Name, school, payload))
		if err != nil {
			return errors.Wrapf(err, "creating %s", spec.desc.Label)
		}
		return ctx.JSON(http.StatusCreated, api.envelope.one(doc.JSON()))
	}
}

func (api *resourceApi) retrieve(spec resourceSpec) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		doc := ctx.Get("object").(document.Document)
		return ctx.JSON(http.StatusOK, api.envelope.one(doc.JSON()))
	}
}

func (api *resourceApi) replace(spec resourceSpec) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		orig := ctx.Get("object").(document.Document)

		payload, err := bindPayload(ctx)
		if err != nil {
			return err
		}
		return api.save(ctx, spec, orig, payload)
	}
}

func (api *resourceApi) patch(spec resourceSpec) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		orig := ctx.Get("object").(document.Document)

		patch, err := bindPayload(ctx)
		if err != nil {
			return err
		}
		merged := orig.JSON()
		for k, v := range patch {
			merged[k] = v
		}
		return api.save(ctx, spec, orig, merged)
	}
}

func (api *resourceApi) save(ctx echo.Context, spec resourceSpec, orig document.Document, payload map[string]interface{}) error {
	if spec.desc.Scoped {
		payload["school"] = orig.School
	}
	if err := spec.validate(payload); err != nil {
		return err
	}

	doc := document.FromJSON(spec.desc.Name, orig.School, payload)
	doc.ID = orig.ID
	doc, err := api.deps.Docs.Update(ctx.Request().Context(), doc)
	if err != nil {
		return errors.Wrapf(err, "updating %s", spec.desc.Label)
	}
	return ctx.JSON(http.StatusOK, api.envelope.one(doc.JSON()))
}

func (api *resourceApi) destroy(spec resourceSpec) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		doc := ctx.Get("object").(document.Document)
		if err := api.deps.Docs.Delete(ctx.Request().Context(), spec.desc.Name, doc.ID); err != nil {
			return errors.Wrapf(err, "deleting %s", spec.desc.Label)
		}
		return ctx.NoContent(http.StatusNoContent)
	}
}

// objectMiddleware loads the :id document into the context. Documents of another school
// are hidden from non-admins.
func (api *resourceApi) objectMiddleware(spec resourceSpec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
			if err != nil {
				return errHttpNotFound
			}
			doc, err := api.deps.Docs.Get(ctx.Request().Context(), spec.desc.Name, id)
			if err != nil {
				return err
			}

			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if spec.desc.Scoped && !claims.IsAdmin() && doc.School != claims.School {
				return errHttpNotFound
			}
			ctx.Set("object", doc)
			return next(ctx)
		}
	}
}

// school resolves the tenant of a request: the "school" query param, then the payload, then the token.
// Non-admins are confined to their own school. Unscoped resources have no school (0).
func (api *resourceApi) school(ctx echo.Context, spec resourceSpec, payload map[string]interface{}) (int, error) {
	if !spec.desc.Scoped {
		return 0, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return 0, err
	}

	school := claims.School
	if q := ctx.QueryParam("school"); q != "" {
		if school, err = strconv.Atoi(q); err != nil || school <= 0 {
			return 0, core.NewValidationError(nil, core.FieldError{Field: "school", Error: "invalid school"})
		}
	} else if v, ok := payload["school"].(float64); ok && v > 0 {
		school = int(v)
	}

	if school <= 0 {
		return 0, errNoSchool
	}
	if !claims.IsAdmin() && school != claims.School {
		return 0, errHttpForbidden
	}
	return school, nil
}
