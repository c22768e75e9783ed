package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-curriculum/apps/api/echo"
	"github.com/trezcool/masomo-curriculum/core/access"
)

func Test_home(t *testing.T) {
	app := setup(t)
	rec := app.run(t, httpTest{path: "/"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Masomo Curriculum API!", rec.Body.String())
}

func Test_accessApi_check(t *testing.T) {
	app := setup(t)
	hodToken := app.getToken(t, "hod", access.RoleHeadOfDepartment)

	check := func(feature access.Feature, action access.Action, role, resolved access.Role, allowed bool) []byte {
		return marshallObj(t, echoapi.CheckResponse{
			Feature: feature, Action: action, Role: role, ResolvedRole: resolved, Allowed: allowed,
		})
	}

	tests := []httpTest{
		{name: "Auth required", path: "/v1/access/check?feature=integration&action=view", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "Bad token", path: "/v1/access/check?feature=integration&action=view", token: "nope",
			wantCode: http.StatusUnauthorized, wantData: marshallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "feature & action required", path: "/v1/access/check", token: hodToken, wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"feature": "this field is required", "action": "this field is required"}),
		},
		{
			name: "alias resolves to faculty (denied)", path: "/v1/access/check?feature=regulation-years&action=create", token: hodToken,
			wantCode: http.StatusOK,
			wantData: check(access.FeatureRegulationYears, access.ActionCreate, access.RoleHeadOfDepartment, access.RoleFaculty, false),
		},
		{
			name: "alias resolves to faculty (allowed)", path: "/v1/access/check?feature=Regulation-Years&action=VIEW", token: hodToken,
			wantCode: http.StatusOK,
			wantData: check(access.FeatureRegulationYears, access.ActionView, access.RoleHeadOfDepartment, access.RoleFaculty, true),
		},
		{
			name: "student cannot create revisions", path: "/v1/access/check?feature=revision-workflow&action=create",
			token: app.getToken(t, "kid", access.RoleStudent), wantCode: http.StatusOK,
			wantData: check(access.FeatureRevisionWorkflow, access.ActionCreate, access.RoleStudent, access.RoleStudent, false),
		},
		{
			name: "raw token role is normalised", path: "/v1/access/check?feature=regulation-years&action=view",
			token: app.getRawToken(t, "hod", " Head_Of_Department "), wantCode: http.StatusOK,
			wantData: check(access.FeatureRegulationYears, access.ActionView, access.RoleHeadOfDepartment, access.RoleFaculty, true),
		},
		{
			name: "unknown role", path: "/v1/access/check?feature=integration&action=view",
			token: app.getToken(t, "x", "janitor"), wantCode: http.StatusOK,
			wantData: check(access.FeatureIntegration, access.ActionView, "janitor", "janitor", false),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.run(t, tt))
		})
	}
}

func Test_accessApi_policy(t *testing.T) {
	app := setup(t)
	tt := httpTest{
		path: "/v1/access/policy", token: app.getToken(t, "kid", access.RoleStudent),
		wantCode: http.StatusOK, wantData: marshallObj(t, access.NewDefaultPolicy().Entries()),
	}
	checkCodeAndData(t, tt, app.run(t, tt))
}

func Test_accessApi_features(t *testing.T) {
	app := setup(t)
	principal := app.getToken(t, "p", access.RolePrincipal)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/access/features/integration", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "unknown feature", path: "/v1/access/features/timetable", token: principal, wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"})},
		{
			name: "principal resolves to administrator", path: "/v1/access/features/revision-workflow", token: principal, wantCode: http.StatusOK,
			wantData: marshallObj(t, echoapi.FeatureResponse{
				Feature: access.FeatureRevisionWorkflow,
				Role:    access.RolePrincipal,
				Actions: []access.Action{access.ActionApprove, access.ActionCreate, access.ActionDelete, access.ActionEdit, access.ActionView},
			}),
		},
		{
			name: "raw token role is normalised", path: "/v1/access/features/Integration",
			token: app.getRawToken(t, "boss", "Super_Administrator"), wantCode: http.StatusOK,
			wantData: marshallObj(t, echoapi.FeatureResponse{
				Feature: access.FeatureIntegration,
				Role:    access.RoleSuperAdministrator,
				Actions: []access.Action{access.ActionCreate, access.ActionDelete, access.ActionEdit, access.ActionManage, access.ActionView},
			}),
		},
		{
			name: "parent has nothing on revisions", path: "/v1/access/features/revision-workflow",
			token: app.getToken(t, "mum", access.RoleParent), wantCode: http.StatusOK,
			wantData: marshallObj(t, echoapi.FeatureResponse{
				Feature: access.FeatureRevisionWorkflow, Role: access.RoleParent, Actions: []access.Action{},
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.run(t, tt))
		})
	}
}
