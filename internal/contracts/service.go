package contracts

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/angelmondragon/tabletloan-backend/pkg/auth"
	"github.com/angelmondragon/tabletloan-backend/pkg/db/models"
	"github.com/angelmondragon/tabletloan-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tabletloan-backend/pkg/errors"
	"github.com/angelmondragon/tabletloan-backend/pkg/keylock"
	"github.com/angelmondragon/tabletloan-backend/pkg/logger"
	"github.com/angelmondragon/tabletloan-backend/pkg/metrics"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox"
	"github.com/angelmondragon/tabletloan-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tabletloan-backend/pkg/storage"
	"github.com/angelmondragon/tabletloan-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const eventSource = "contracts"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service stores uploaded contracts and pairs them with active assignments.
type Service interface {
	Upload(ctx context.Context, doc Document) (*UploadResult, error)
	UploadMany(ctx context.Context, docs []Document) (*BatchResult, error)
	UploadForAssignment(ctx context.Context, assignmentID uuid.UUID, doc Document) (*UploadResult, error)
	ManualAttach(ctx context.Context, contractID, assignmentID uuid.UUID) (*UploadResult, error)
	ListUnmatched(ctx context.Context) ([]models.Contract, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	Download(ctx context.Context, id uuid.UUID) (*Download, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo           Repository
	tx             txRunner
	blobs          storage.ObjectStore
	outbox         outbox.Emitter
	locks          *keylock.Locker
	metrics        *metrics.LendingMetrics
	maxUploadBytes int64
	logg           *logger.Logger
	now            func() time.Time
}

// NewService builds the contract service. metrics may be nil; a non-positive
// maxUploadBytes disables the size check.
func NewService(repo Repository, tx txRunner, blobs storage.ObjectStore, emitter outbox.Emitter, locks *keylock.Locker, m *metrics.LendingMetrics, maxUploadBytes int64, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("contracts repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("object store required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if locks == nil {
		return nil, fmt.Errorf("key locker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:           repo,
		tx:             tx,
		blobs:          blobs,
		outbox:         emitter,
		locks:          locks,
		metrics:        m,
		maxUploadBytes: maxUploadBytes,
		logg:           logg,
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Upload(ctx context.Context, doc Document) (*UploadResult, error) {
	if err := s.normalize(&doc); err != nil {
		return nil, err
	}
	m, err := matchDocument(ctx, s.repo, doc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "match contract")
	}
	return s.store(ctx, doc, m, false)
}

func (s *service) UploadMany(ctx context.Context, docs []Document) (*BatchResult, error) {
	if len(docs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one file is required")
	}

	batch := &BatchResult{Files: make([]FileResult, 0, len(docs))}
	for _, doc := range docs {
		entry := FileResult{Filename: doc.Filename}
		result, err := s.Upload(ctx, doc)
		if err != nil {
			entry.Error = fileError(err)
			batch.Failed++
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"filename": doc.Filename,
				"error":    err.Error(),
			}), "contract upload failed")
		} else {
			entry.Result = result
			batch.Uploaded++
			if result.Matched {
				batch.Matched++
			}
		}
		batch.Files = append(batch.Files, entry)
	}

	switch {
	case batch.Failed == 0:
		batch.Status = BatchStatusOK
	case batch.Uploaded == 0:
		batch.Status = BatchStatusFailed
	default:
		batch.Status = BatchStatusPartialFailure
	}
	return batch, nil
}

func (s *service) UploadForAssignment(ctx context.Context, assignmentID uuid.UUID, doc Document) (*UploadResult, error) {
	if err := s.normalize(&doc); err != nil {
		return nil, err
	}
	assignment, err := s.repo.FindAssignment(ctx, assignmentID)
	if err != nil {
		return nil, lookupErr(err, "assignment")
	}
	if !assignment.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "assignment is not active")
	}
	return s.store(ctx, doc, &match{assignment: assignment, rule: enums.ContractMatchManual}, true)
}

// store writes the document to the object store and records the contract.
// A matched assignment that is no longer active leaves the contract
// unmatched unless strict is set.
func (s *service) store(ctx context.Context, doc Document, m *match, strict bool) (*UploadResult, error) {
	contractID, err := models.NewID()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate contract id")
	}
	key := storage.ContractKey(contractID.String(), doc.Filename)
	if err := s.blobs.Put(ctx, key, doc.Data, doc.ContentType); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store contract document")
	}

	if m != nil {
		unlock := s.locks.Lock(keylock.AssignmentKey(m.assignment.ID.String()))
		defer unlock()
	}

	now := s.now()
	contract := &models.Contract{
		ID:          contractID,
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		SizeBytes:   int64(len(doc.Data)),
		StorageKey:  key,
		Fields:      doc.Fields,
		MatchedBy:   enums.ContractMatchNone,
		UploadedAt:  &now,
		UploadedBy:  auth.OperatorPtr(ctx),
	}

	var result *UploadResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var target *models.Assignment
		if m != nil {
			current, err := repo.FindAssignment(ctx, m.assignment.ID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload assignment")
			}
			if err == nil && current.IsActive {
				target = current
			}
		}
		if target == nil && strict {
			return pkgerrors.New(pkgerrors.CodeConflict, "assignment is no longer active")
		}

		var err error
		if target == nil {
			result, err = s.recordUnmatchedTx(ctx, tx, contract)
		} else {
			result, err = s.attachNewTx(ctx, tx, contract, target, m.rule)
		}
		return err
	})
	if err != nil {
		if delErr := s.blobs.Delete(ctx, key); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			s.logg.Error(s.logg.WithField(ctx, "storage_key", key), "orphaned contract document", delErr)
		}
		return nil, serviceErr(err, "record contract")
	}

	s.metrics.ContractMatched(string(result.MatchedBy))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"contract_id": contractID.String(),
		"filename":    doc.Filename,
		"matched_by":  result.MatchedBy,
		"warning":     result.Warning,
	})
	s.logg.Info(logCtx, "contract uploaded")
	return result, nil
}

func (s *service) recordUnmatchedTx(ctx context.Context, tx *gorm.DB, contract *models.Contract) (*UploadResult, error) {
	contract.AssetTag, contract.PersonName = formSnapshot(contract.Fields)
	contract.IsActive = false
	if err := s.repo.WithTx(tx).Create(ctx, contract); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert contract")
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventContractUnmatched,
		AggregateType: enums.AggregateContract,
		AggregateID:   contract.ID,
		Actor:         outbox.ActorFromContext(ctx, eventSource),
		Data: payloads.ContractUnmatchedEvent{
			ContractID: contract.ID,
			Filename:   contract.Filename,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit contract_unmatched")
	}
	return &UploadResult{Contract: contract, MatchedBy: enums.ContractMatchNone}, nil
}

// attachNewTx supersedes the assignment's current contract with a new one.
func (s *service) attachNewTx(ctx context.Context, tx *gorm.DB, contract *models.Contract, target *models.Assignment, rule enums.ContractMatch) (*UploadResult, error) {
	repo := s.repo.WithTx(tx)
	if err := repo.DeactivateActive(ctx, target.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate previous contract")
	}

	contract.AssignmentID = &target.ID
	contract.AssetTag = target.AssetTag
	contract.PersonName = target.PersonName
	contract.MatchedBy = rule
	contract.IsActive = true
	if err := repo.Create(ctx, contract); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert contract")
	}
	return s.linkTx(ctx, tx, contract, target.ID)
}

func (s *service) linkTx(ctx context.Context, tx *gorm.DB, contract *models.Contract, assignmentID uuid.UUID) (*UploadResult, error) {
	warning := EvaluateWarning(contract.Fields)
	ok, err := s.repo.WithTx(tx).LinkAssignment(ctx, assignmentID, contract.ID, warning)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link contract")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "assignment was dissolved concurrently")
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventContractAttached,
		AggregateType: enums.AggregateContract,
		AggregateID:   contract.ID,
		Actor:         outbox.ActorFromContext(ctx, eventSource),
		Data: payloads.ContractAttachedEvent{
			ContractID:      contract.ID,
			AssignmentID:    assignmentID,
			MatchedBy:       contract.MatchedBy,
			ContractWarning: warning,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit contract_attached")
	}

	id := assignmentID
	return &UploadResult{
		Contract:     contract,
		Matched:      true,
		MatchedBy:    contract.MatchedBy,
		AssignmentID: &id,
		Warning:      warning,
	}, nil
}

func (s *service) ManualAttach(ctx context.Context, contractID, assignmentID uuid.UUID) (*UploadResult, error) {
	if _, err := s.repo.FindByID(ctx, contractID); err != nil {
		return nil, lookupErr(err, "contract")
	}
	if _, err := s.repo.FindAssignment(ctx, assignmentID); err != nil {
		return nil, lookupErr(err, "assignment")
	}

	unlock := s.locks.Lock(keylock.AssignmentKey(assignmentID.String()))
	defer unlock()

	var result *UploadResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		contract, err := repo.FindByID(ctx, contractID)
		if err != nil {
			return lookupErr(err, "contract")
		}
		assignment, err := repo.FindAssignment(ctx, assignmentID)
		if err != nil {
			return lookupErr(err, "assignment")
		}
		if contract.AssignmentID != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "contract is already matched").
				WithDetails(map[string]any{"assignment_id": contract.AssignmentID})
		}
		if !assignment.IsActive {
			return pkgerrors.New(pkgerrors.CodeConflict, "assignment is not active")
		}
		if assignment.ContractID != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "assignment already has a contract").
				WithDetails(map[string]any{"contract_id": assignment.ContractID})
		}

		ok, err := repo.Claim(ctx, contractID, assignment, enums.ContractMatchManual)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim contract")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "contract was matched concurrently")
		}
		contract.AssignmentID = &assignment.ID
		contract.AssetTag = assignment.AssetTag
		contract.PersonName = assignment.PersonName
		contract.MatchedBy = enums.ContractMatchManual
		contract.IsActive = true

		result, err = s.linkTx(ctx, tx, contract, assignment.ID)
		return err
	})
	if err != nil {
		return nil, serviceErr(err, "attach contract")
	}

	s.metrics.ContractMatched(string(enums.ContractMatchManual))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"contract_id":   contractID.String(),
		"assignment_id": assignmentID.String(),
	}), "contract attached manually")
	return result, nil
}

func (s *service) ListUnmatched(ctx context.Context) ([]models.Contract, error) {
	rows, err := s.repo.ListUnmatched(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unmatched contracts")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "contract")
	}
	return row, nil
}

func (s *service) Download(ctx context.Context, id uuid.UUID) (*Download, error) {
	contract, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if contract.StorageKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contract document not found")
	}
	obj, err := s.blobs.Get(ctx, contract.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contract document not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read contract document")
	}

	contentType := contract.ContentType
	if contentType == "" {
		contentType = obj.ContentType
	}
	return &Download{Filename: contract.Filename, ContentType: contentType, Data: obj.Data}, nil
}

// Delete removes a contract, detaching it from any assignment that points at
// it, then drops the stored document.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.AssignmentID != nil {
		unlock := s.locks.Lock(keylock.AssignmentKey(current.AssignmentID.String()))
		defer unlock()
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByID(ctx, id); err != nil {
			return lookupErr(err, "contract")
		}
		if err := repo.Unlink(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach contract")
		}
		if err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete contract")
		}
		return nil
	})
	if err != nil {
		return serviceErr(err, "delete contract")
	}

	logCtx := s.logg.WithField(ctx, "contract_id", id.String())
	if err := storage.DeleteAll(ctx, s.blobs, []string{current.StorageKey}); err != nil {
		s.logg.Error(logCtx, "failed to delete contract document", err)
	}
	s.logg.Info(logCtx, "contract deleted")
	return nil
}

func (s *service) normalize(doc *Document) error {
	doc.Filename = baseName(doc.Filename)
	if doc.Filename == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "filename is required")
	}
	if len(doc.Data) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "document is empty").
			WithDetails(map[string]any{"filename": doc.Filename})
	}
	if s.maxUploadBytes > 0 && int64(len(doc.Data)) > s.maxUploadBytes {
		return pkgerrors.New(pkgerrors.CodeValidation, "document exceeds upload limit").
			WithDetails(map[string]any{"filename": doc.Filename, "max_bytes": s.maxUploadBytes})
	}
	doc.ContentType = strings.TrimSpace(doc.ContentType)
	if doc.ContentType == "" {
		doc.ContentType = mime.TypeByExtension(strings.ToLower(path.Ext(doc.Filename)))
	}
	if doc.ContentType == "" {
		doc.ContentType = "application/octet-stream"
	}
	if doc.Fields == nil {
		doc.Fields = types.FieldMap{}
	}
	return nil
}

// formSnapshot keeps whatever identity the form carried on unmatched
// contracts so operators can pair them by hand.
func formSnapshot(fields types.FieldMap) (assetTag, personName string) {
	assetTag, _ = fields.Get(fieldAssetTag)
	first, _ := fields.Get(fieldFirstName)
	last, _ := fields.Get(fieldLastName)
	return assetTag, strings.TrimSpace(first + " " + last)
}

func lookupErr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup "+entity)
}

func serviceErr(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
