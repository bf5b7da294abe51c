package registry

import "context"

type AssetService interface {
	Mint(ctx context.Context, owner, name, metadataURL string) (Asset, error)
	Get(ctx context.Context, id int64) (Asset, error)
	OwnerOf(ctx context.Context, id int64) (string, error)
	Transfer(ctx context.Context, from, to string, id int64) error
}

type assetService struct {
	repo AssetRepository
}

func NewAssetService(repo AssetRepository) AssetService {
	return &assetService{repo: repo}
}

func (s *assetService) Mint(ctx context.Context, owner, name, metadataURL string) (Asset, error) {
	return s.repo.CreateAsset(ctx, Asset{OwnerUUID: owner, Name: name, MetadataURL: metadataURL})
}

func (s *assetService) Get(ctx context.Context, id int64) (Asset, error) {
	return s.repo.GetAsset(ctx, id)
}

func (s *assetService) OwnerOf(ctx context.Context, id int64) (string, error) {
	return s.repo.OwnerOf(ctx, id)
}

func (s *assetService) Transfer(ctx context.Context, from, to string, id int64) error {
	return s.repo.TransferOwner(ctx, id, from, to)
}
