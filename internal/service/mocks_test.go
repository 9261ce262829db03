package service_test

import (
	"context"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/mock"

	"reseller-ledger-backend/internal/domain"
	"reseller-ledger-backend/internal/service"
)

type MockAlertService struct {
	mock.Mock
}

func (m *MockAlertService) CompensationFailed(ctx context.Context, c domain.Compensation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockAlertService) CompensationAbandoned(ctx context.Context, c domain.Compensation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockAlertService) BalanceDrift(ctx context.Context, drifts []service.BalanceDrift) error {
	args := m.Called(ctx, drifts)
	return args.Error(0)
}

type MockMailSender struct {
	mock.Mock
}

func (m *MockMailSender) Send(email *mail.SGMailV3) (*rest.Response, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rest.Response), args.Error(1)
}
