package api

import (
	"context"

	"github.com/safe-solver/internal/batcher"
	"github.com/safe-solver/internal/models"
	"github.com/safe-solver/internal/service"
	"github.com/safe-solver/internal/types"
)

type mockGameService struct {
	getAddressFunc    func(ctx context.Context, address string) (*models.Address, error)
	getAccountFunc    func(ctx context.Context, id int64) (*models.Account, error)
	listAddressesFunc func(ctx context.Context, accountID int64) ([]*models.Address, error)
	getGameStateFunc  func(ctx context.Context, address string) (*service.GameStateView, error)
	getUserFunc       func(ctx context.Context, address string) (*service.UserView, error)
	getGameInfoFunc   func(ctx context.Context) (*service.GameInfoView, error)
}

func (m *mockGameService) GetAddress(ctx context.Context, address string) (*models.Address, error) {
	if m.getAddressFunc != nil {
		return m.getAddressFunc(ctx, address)
	}
	id := int64(1)
	return &models.Address{Address: address, AddressType: types.AddressTypeEVM, AccountID: &id}, nil
}

func (m *mockGameService) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	if m.getAccountFunc != nil {
		return m.getAccountFunc(ctx, id)
	}
	primary := "0xprimary"
	return &models.Account{ID: id, PrimaryAddress: &primary}, nil
}

func (m *mockGameService) ListAddresses(ctx context.Context, accountID int64) ([]*models.Address, error) {
	if m.listAddressesFunc != nil {
		return m.listAddressesFunc(ctx, accountID)
	}
	return []*models.Address{}, nil
}

func (m *mockGameService) GetGameState(ctx context.Context, address string) (*service.GameStateView, error) {
	if m.getGameStateFunc != nil {
		return m.getGameStateFunc(ctx, address)
	}
	return service.DefaultGameState(), nil
}

func (m *mockGameService) GetUser(ctx context.Context, address string) (*service.UserView, error) {
	if m.getUserFunc != nil {
		return m.getUserFunc(ctx, address)
	}
	return &service.UserView{Name: address}, nil
}

func (m *mockGameService) GetGameInfo(ctx context.Context) (*service.GameInfoView, error) {
	if m.getGameInfoFunc != nil {
		return m.getGameInfoFunc(ctx)
	}
	return &service.GameInfoView{
		GameInfo:     models.GameInfo{Name: "Safe Solver", ScoreUnit: "points"},
		Achievements: []*models.AchievementWithCount{},
	}, nil
}

type mockLeaderboardService struct {
	getLeaderboardFunc func(ctx context.Context, q service.LeaderboardQuery) (*service.LeaderboardView, error)
	getProfileFunc     func(ctx context.Context, address, start, end string) (*service.UserProfileView, error)
}

func (m *mockLeaderboardService) GetLeaderboard(ctx context.Context, q service.LeaderboardQuery) (*service.LeaderboardView, error) {
	if m.getLeaderboardFunc != nil {
		return m.getLeaderboardFunc(ctx, q)
	}
	return &service.LeaderboardView{Entries: []*models.LeaderboardEntry{}}, nil
}

func (m *mockLeaderboardService) GetUserProfile(ctx context.Context, address, start, end string) (*service.UserProfileView, error) {
	if m.getProfileFunc != nil {
		return m.getProfileFunc(ctx, address, start, end)
	}
	return &service.UserProfileView{
		Identity:     models.Identity{QueriedAddress: address, ResolvedAddress: address},
		Achievements: []string{},
	}, nil
}

type mockEventService struct {
	listFunc func(ctx context.Context, address string, limit int) ([]*models.TransitionEvent, error)
}

func (m *mockEventService) ListEvents(ctx context.Context, address string, limit int) ([]*models.TransitionEvent, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, address, limit)
	}
	return []*models.TransitionEvent{}, nil
}

type mockSubmitter struct {
	submitFunc func(ctx context.Context, req *batcher.Request) (*batcher.Receipt, error)
}

func (m *mockSubmitter) Submit(ctx context.Context, req *batcher.Request) (*batcher.Receipt, error) {
	if m.submitFunc != nil {
		return m.submitFunc(ctx, req)
	}
	return &batcher.Receipt{Success: true, InputID: "input-1", Message: "queued"}, nil
}
