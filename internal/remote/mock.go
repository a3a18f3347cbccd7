package remote

import (
	"context"
	"io"
)

// MockIdentity permite tests sin llamar al proveedor real.
type MockIdentity struct {
	Response AuthResponse
	Err      error
}

func (m *MockIdentity) SignIn(ctx context.Context, email, password string) (AuthResponse, error) {
	return m.Response, m.Err
}

func (m *MockIdentity) SignUp(ctx context.Context, email, password string) (AuthResponse, error) {
	return m.Response, m.Err
}

// MockBlobs permite tests sin subir nada al object store.
type MockBlobs struct {
	Result UploadResult
	Err    error
}

func (m *MockBlobs) Upload(ctx context.Context, filename string, content io.Reader, token string) (UploadResult, error) {
	return m.Result, m.Err
}
