package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-ponto/veritas-api/internal/device"
	"github.com/veritas-ponto/veritas-api/internal/events"
	"github.com/veritas-ponto/veritas-api/internal/models"
	appErrors "github.com/veritas-ponto/veritas-api/pkg/errors"
)

type senderStub struct {
	mu        sync.Mutex
	open      bool
	enrolled  []int64
	confirmed int
	deleted   []int64
	emptied   int
	enrollErr error
}

func (s *senderStub) IsOpen() bool { return s.open }

func (s *senderStub) Enroll(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enrollErr != nil {
		return s.enrollErr
	}
	s.enrolled = append(s.enrolled, id)
	return nil
}

func (s *senderStub) EnrollConfirmed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed++
	return nil
}

func (s *senderStub) DeleteID(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *senderStub) EmptyDatabase() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emptied++
	return nil
}

func (s *senderStub) deletedIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.deleted...)
}

type enrollRepoStub struct {
	mu        sync.Mutex
	nextID    int64
	createErr error
	created   []*models.User
	deleted   []int64
	missing   bool
}

func (r *enrollRepoStub) FindByID(_ context.Context, id int64) (*models.User, error) {
	if r.missing {
		return nil, appErrors.ErrUserNotFound
	}
	return &models.User{ID: id, Nome: "Teste"}, nil
}

func (r *enrollRepoStub) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, user)
	return nil
}

func (r *enrollRepoStub) Delete(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return true, nil
}

func (r *enrollRepoStub) NextFreeID(_ context.Context) (int64, error) {
	if r.nextID == 0 {
		return 1, nil
	}
	return r.nextID, nil
}

func newEnrollmentFixture(sender *senderStub, repo *enrollRepoStub, timeout time.Duration) *EnrollmentService {
	return NewEnrollmentService(sender, repo, nil, timeout, 50*time.Millisecond, nil, nil)
}

func waitActive(t *testing.T, svc *EnrollmentService) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if svc.EnrollmentActive() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("enrollment never became active")
}

func validEnrollRequest() EnrollRequest {
	return EnrollRequest{Nome: "Maria Silva", Matricula: "2026001", Turma: "3A", DiasSemana: []int{1, 2, 3, 4, 5}}
}

func TestEnrollSuccess(t *testing.T) {
	sender := &senderStub{open: true}
	repo := &enrollRepoStub{nextID: 4}
	svc := newEnrollmentFixture(sender, repo, time.Second)

	type result struct {
		user *models.User
		err  error
	}
	done := make(chan result, 1)
	go func() {
		user, err := svc.Enroll(context.Background(), validEnrollRequest())
		done <- result{user, err}
	}()

	waitActive(t, svc)
	svc.HandleDeviceStatus(context.Background(), device.DeviceStatus{Status: device.StatusSuccess, ID: 4})

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, int64(4), res.user.ID)
	assert.Equal(t, "Maria Silva", res.user.Nome)
	assert.Equal(t, []int64{4}, sender.enrolled)
	assert.Equal(t, 1, sender.confirmed)
	require.Len(t, repo.created, 1)
	assert.False(t, svc.EnrollmentActive())
}

func TestEnrollRejectsConcurrentHandshake(t *testing.T) {
	sender := &senderStub{open: true}
	repo := &enrollRepoStub{}
	svc := newEnrollmentFixture(sender, repo, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Enroll(context.Background(), validEnrollRequest())
		done <- err
	}()
	waitActive(t, svc)

	_, err := svc.Enroll(context.Background(), validEnrollRequest())
	assert.ErrorIs(t, appErrors.FromError(err), appErrors.ErrEnrollmentInProgress)

	svc.HandleDeviceStatus(context.Background(), device.DeviceStatus{Status: device.StatusSuccess, ID: 1})
	require.NoError(t, <-done)
}

func TestEnrollTimeoutReleasesSlot(t *testing.T) {
	sender := &senderStub{open: true}
	repo := &enrollRepoStub{}
	svc := newEnrollmentFixture(sender, repo, 20*time.Millisecond)

	_, err := svc.Enroll(context.Background(), validEnrollRequest())
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentTimeout)
	assert.False(t, svc.EnrollmentActive())
	assert.Empty(t, repo.created)

	// A fresh handshake can start right away.
	done := make(chan error, 1)
	go func() {
		_, err := svc.Enroll(context.Background(), validEnrollRequest())
		done <- err
	}()
	waitActive(t, svc)
	svc.HandleDeviceStatus(context.Background(), device.DeviceStatus{Status: device.StatusSuccess, ID: 1})
	require.NoError(t, <-done)
}

func TestEnrollDeviceErrorSurfacesMessage(t *testing.T) {
	sender := &senderStub{open: true}
	repo := &enrollRepoStub{}
	svc := newEnrollmentFixture(sender, repo, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Enroll(context.Background(), validEnrollRequest())
		done <- err
	}()
	waitActive(t, svc)
	svc.HandleDeviceStatus(context.Background(), device.DeviceStatus{Status: device.StatusError, ID: 1, Message: "leitura falhou"})

	err := <-done
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDeviceError.Code, appErr.Code)
	assert.Equal(t, "leitura falhou", appErr.Message)
	assert.Empty(t, repo.created)
}

func TestEnrollDuplicateMatriculaRollsBackTemplate(t *testing.T) {
	sender := &senderStub{open: true}
	repo := &enrollRepoStub{nextID: 6, createErr: appErrors.ErrDuplicateMatricula}
	svc := newEnrollmentFixture(sender, repo, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Enroll(context.Background(), validEnrollRequest())
		done <- err
	}()
	waitActive(t, svc)
	svc.HandleDeviceStatus(context.Background(), device.DeviceStatus{Status: device.StatusSuccess, ID: 6})

	err := <-done
	assert.ErrorIs(t, appErrors.FromError(err), appErrors.ErrDuplicateMatricula)
	assert.Equal(t, []int64{6}, sender.deletedIDs())
	assert.Zero(t, sender.confirmed)
	assert.False(t, svc.EnrollmentActive())
}

func TestEnrollRequiresOpenPort(t *testing.T) {
	svc := newEnrollmentFixture(&senderStub{open: false}, &enrollRepoStub{}, time.Second)
	_, err := svc.Enroll(context.Background(), validEnrollRequest())
	assert.ErrorIs(t, err, appErrors.ErrPortNotOpen)
}

func TestDeleteUserWaitsForAck(t *testing.T) {
	sender := &senderStub{open: true}
	repo := &enrollRepoStub{}
	svc := newEnrollmentFixture(sender, repo, time.Second)

	done := make(chan error, 1)
	go func() {
		done <- svc.DeleteUser(context.Background(), 3)
	}()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(sender.deletedIDs()) > 0 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, []int64{3}, sender.deletedIDs())

	svc.HandleDeviceStatus(context.Background(), device.DeviceStatus{Status: device.StatusSuccess, ID: 3})
	require.NoError(t, <-done)
	assert.Equal(t, []int64{3}, repo.deleted)
}

func TestDeleteUserTimeoutKeepsRow(t *testing.T) {
	sender := &senderStub{open: true}
	repo := &enrollRepoStub{}
	svc := newEnrollmentFixture(sender, repo, time.Second)

	err := svc.DeleteUser(context.Background(), 3)
	assert.ErrorIs(t, err, appErrors.ErrDeleteTimeout)
	assert.Empty(t, repo.deleted)
}

func TestDeleteUserDeviceErrorKeepsRow(t *testing.T) {
	sender := &senderStub{open: true}
	repo := &enrollRepoStub{}
	svc := newEnrollmentFixture(sender, repo, time.Second)

	done := make(chan error, 1)
	go func() {
		done <- svc.DeleteUser(context.Background(), 3)
	}()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && len(sender.deletedIDs()) == 0 {
		time.Sleep(2 * time.Millisecond)
	}

	svc.HandleDeviceStatus(context.Background(), device.DeviceStatus{Status: device.StatusError, ID: 3, Message: "id inexistente"})

	err := <-done
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDeviceError.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

type biometricHub struct {
	mu       sync.Mutex
	messages []string
}

func (h *biometricHub) Publish(eventType string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if eventType != events.TypeBiometricStatus {
		return
	}
	if m, ok := payload.(map[string]interface{}); ok {
		if msg, ok := m["message"].(string); ok {
			h.messages = append(h.messages, msg)
		}
	}
}

func (h *biometricHub) seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.messages...)
}

func TestEnrollInfoProgressKeepsSessionAlive(t *testing.T) {
	sender := &senderStub{open: true}
	repo := &enrollRepoStub{nextID: 4}
	hub := &biometricHub{}
	svc := NewEnrollmentService(sender, repo, hub, time.Second, 50*time.Millisecond, nil, nil)

	type result struct {
		user *models.User
		err  error
	}
	done := make(chan result, 1)
	go func() {
		user, err := svc.Enroll(context.Background(), validEnrollRequest())
		done <- result{user, err}
	}()
	waitActive(t, svc)

	svc.HandleDeviceStatus(context.Background(), device.DeviceStatus{
		Status: device.StatusInfo, ID: 4, Message: "posicione o dedo novamente",
	})
	assert.True(t, svc.EnrollmentActive())
	assert.Contains(t, hub.seen(), "posicione o dedo novamente")

	svc.HandleDeviceStatus(context.Background(), device.DeviceStatus{Status: device.StatusSuccess, ID: 4})
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, int64(4), res.user.ID)
	require.Len(t, repo.created, 1)
	assert.False(t, svc.EnrollmentActive())
}

func TestDeleteAckDuringEnrollmentRoutesByID(t *testing.T) {
	sender := &senderStub{open: true}
	repo := &enrollRepoStub{nextID: 4}
	svc := newEnrollmentFixture(sender, repo, time.Second)

	enrollDone := make(chan error, 1)
	go func() {
		_, err := svc.Enroll(context.Background(), validEnrollRequest())
		enrollDone <- err
	}()
	waitActive(t, svc)

	deleteDone := make(chan error, 1)
	go func() {
		deleteDone <- svc.DeleteUser(context.Background(), 9)
	}()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(sender.deletedIDs()) > 0 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	require.Equal(t, []int64{9}, sender.deletedIDs())

	svc.HandleDeviceStatus(context.Background(), device.DeviceStatus{Status: device.StatusSuccess, ID: 9})
	require.NoError(t, <-deleteDone)
	assert.True(t, svc.EnrollmentActive())

	svc.HandleDeviceStatus(context.Background(), device.DeviceStatus{Status: device.StatusSuccess, ID: 4})
	require.NoError(t, <-enrollDone)
	assert.Equal(t, []int64{9}, repo.deleted)
	require.Len(t, repo.created, 1)
	assert.Equal(t, int64(4), repo.created[0].ID)
}

func TestEmptyDeviceBlockedDuringEnrollment(t *testing.T) {
	sender := &senderStub{open: true}
	repo := &enrollRepoStub{}
	svc := newEnrollmentFixture(sender, repo, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Enroll(context.Background(), validEnrollRequest())
		done <- err
	}()
	waitActive(t, svc)

	err := svc.EmptyDevice(context.Background())
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentInProgress)
	assert.Zero(t, sender.emptied)

	svc.HandleDeviceStatus(context.Background(), device.DeviceStatus{Status: device.StatusSuccess, ID: 1})
	require.NoError(t, <-done)
	require.NoError(t, svc.EmptyDevice(context.Background()))
	assert.Equal(t, 1, sender.emptied)
}
