package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-curriculum/core"
	"github.com/trezcool/masomo-curriculum/core/access"
)

type accessApi struct {
	policy *access.Policy
}

func registerAccessAPI(g *echo.Group, jwt echo.MiddlewareFunc, policy *access.Policy) {
	api := accessApi{policy: policy}

	ag := g.Group("/access", jwt)
	ag.GET("/check", api.check)
	ag.GET("/policy", api.entries)
	ag.GET("/features/:feature", api.features)
}

type (
	CheckRequest struct {
		Feature string `json:"feature" query:"feature" validate:"required,notblank"`
		Action  string `json:"action" query:"action" validate:"required,notblank"`
	}

	CheckResponse struct {
		Feature      access.Feature `json:"feature"`
		Action       access.Action  `json:"action"`
		Role         access.Role    `json:"role"`
		ResolvedRole access.Role    `json:"resolved_role"`
		Allowed      bool           `json:"allowed"`
	}

	FeatureResponse struct {
		Feature access.Feature  `json:"feature"`
		Role    access.Role     `json:"role"`
		Actions []access.Action `json:"actions"`
	}
)

func (cr *CheckRequest) Validate() error {
	cr.Feature = core.CleanString(cr.Feature, true /* lower */)
	cr.Action = core.CleanString(cr.Action, true /* lower */)
	return core.Validate.Struct(cr)
}

// Handlers

func (api *accessApi) check(ctx echo.Context) error {
	var data CheckRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CheckRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	role := access.ParseRole(string(claims.Role))
	feature, action := access.Feature(data.Feature), access.Action(data.Action)
	return ctx.JSON(http.StatusOK, CheckResponse{
		Feature:      feature,
		Action:       action,
		Role:         role,
		ResolvedRole: access.ResolveRole(role),
		Allowed:      api.policy.IsAllowed(feature, action, role),
	})
}

func (api *accessApi) entries(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.policy.Entries())
}

func (api *accessApi) features(ctx echo.Context) error {
	feature := access.Feature(core.CleanString(ctx.Param("feature"), true /* lower */))
	if !api.policy.HasFeature(feature) {
		return errHttpNotFound
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	role := access.ParseRole(string(claims.Role))
	return ctx.JSON(http.StatusOK, FeatureResponse{
		Feature: feature,
		Role:    role,
		Actions: api.policy.Permissions(feature, role).Allowed(),
	})
}
