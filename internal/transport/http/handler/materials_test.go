package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/studyshare-api/internal/application/material"
	"github.com/studyshare-api/internal/domain"
	s3infra "github.com/studyshare-api/internal/infrastructure/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMaterialSvc struct{ mock.Mock }

func (m *mockMaterialSvc) Upload(ctx context.Context, input material.UploadInput) (*domain.Material, error) {
	args := m.Called(ctx, input)
	if mat, _ := args.Get(0).(*domain.Material); mat != nil {
		return mat, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMaterialSvc) Get(ctx context.Context, materialID, requesterID string, isAdmin bool) (*domain.Material, error) {
	args := m.Called(ctx, materialID, requesterID, isAdmin)
	if mat, _ := args.Get(0).(*domain.Material); mat != nil {
		return mat, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMaterialSvc) ListByOwner(ctx context.Context, ownerID string) ([]domain.Material, error) {
	args := m.Called(ctx, ownerID)
	items, _ := args.Get(0).([]domain.Material)
	return items, args.Error(1)
}

func (m *mockMaterialSvc) Download(ctx context.Context, materialID, requesterID string, isAdmin bool) (*s3infra.Object, *domain.Material, error) {
	args := m.Called(ctx, materialID, requesterID, isAdmin)
	obj, _ := args.Get(0).(*s3infra.Object)
	mat, _ := args.Get(1).(*domain.Material)
	return obj, mat, args.Error(2)
}

func (m *mockMaterialSvc) Delete(ctx context.Context, materialID, requesterID string, isAdmin bool) error {
	return m.Called(ctx, materialID, requesterID, isAdmin).Error(0)
}

func TestUploadMaterial_Multipart(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "Week 1"))
	require.NoError(t, mw.WriteField("private", "true"))
	fw, err := mw.CreateFormFile("file", "week1.pdf")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("%PDF"))
	require.NoError(t, mw.Close())

	svc := &mockMaterialSvc{}
	svc.On("Upload", mock.Anything, mock.MatchedBy(func(in material.UploadInput) bool {
		return in.Title == "Week 1" && in.IsPrivate && in.OwnerID == "u1" && in.Filename == "week1.pdf"
	})).Return(&domain.Material{MaterialID: "m1"}, nil)

	r := httptest.NewRequest(http.MethodPost, "/v1/materials", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	NewMaterialHandler(svc).Upload(rr, withClaims(r, "u1", domain.RoleUser))

	assert.Equal(t, http.StatusCreated, rr.Code)
	svc.AssertExpectations(t)
}

func TestUploadMaterial_MissingFile(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("title", "Week 1"))
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/v1/materials", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	NewMaterialHandler(&mockMaterialSvc{}).Upload(rr, withClaims(r, "u1", domain.RoleUser))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDownloadMaterial_StreamsObject(t *testing.T) {
	svc := &mockMaterialSvc{}
	svc.On("Download", mock.Anything, "m1", "u1", false).Return(
		&s3infra.Object{Body: io.NopCloser(strings.NewReader("file-bytes")), ContentType: "application/pdf", ContentLength: 10},
		&domain.Material{MaterialID: "m1", FileName: "week1.pdf"},
		nil,
	)

	r := withClaims(withChiID(httptest.NewRequest(http.MethodGet, "/v1/materials/m1/download", nil), "m1"), "u1", domain.RoleUser)
	rr := httptest.NewRecorder()
	NewMaterialHandler(svc).Download(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "file-bytes", rr.Body.String())
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=week1.pdf`, rr.Header().Get("Content-Disposition"))
}

func TestDeleteMaterial_AdminFlagPassed(t *testing.T) {
	svc := &mockMaterialSvc{}
	svc.On("Delete", mock.Anything, "m1", "admin1", true).Return(nil)

	r := withClaims(withChiID(httptest.NewRequest(http.MethodDelete, "/v1/materials/m1", nil), "m1"), "admin1", domain.RoleAdmin)
	rr := httptest.NewRecorder()
	NewMaterialHandler(svc).Delete(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestListMine_EmptyIsArray(t *testing.T) {
	svc := &mockMaterialSvc{}
	svc.On("ListByOwner", mock.Anything, "u1").Return(nil, nil)

	rr := httptest.NewRecorder()
	NewMaterialHandler(svc).ListMine(rr, withClaims(httptest.NewRequest(http.MethodGet, "/v1/materials", nil), "u1", domain.RoleUser))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}
