package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/mailsift/internal/log"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// firestoreScope authorizes the Firestore API.
const firestoreScope = "https://www.googleapis.com/auth/datastore"

// Ensure FirestoreStorage implements the Storage interface
var _ Storage = (*FirestoreStorage)(nil)

// FirestoreStorage persists extraction records in Google Cloud Firestore,
// one document per extraction with both artifact payloads inline. Documents
// are keyed by the artifact base name.
//
// Firestore caps documents at 1 MiB, so extractions whose artifacts exceed
// that surface as a Save error rather than a silent truncation.
type FirestoreStorage struct {
	client     *firestore.Client
	projectID  string
	collection string
}

// ExtractionDoc represents an extraction record document in Firestore
type ExtractionDoc struct {
	SourceFile     string    `firestore:"source_file"`
	ExtractionTime time.Time `firestore:"extraction_time"`
	TotalEmails    int       `firestore:"total_emails"`
	JSONFile       string    `firestore:"json_file"`
	CSVFile        string    `firestore:"csv_file"`
	JSONData       []byte    `firestore:"json_data"`
	CSVData        []byte    `firestore:"csv_data"`
}

// NewFirestoreStorage creates a Firestore-backed storage. credentialsJSON
// optionally carries a service account key; when empty the client uses
// application default credentials.
func NewFirestoreStorage(ctx context.Context, projectID, database, collectionPrefix string, credentialsJSON []byte) (*FirestoreStorage, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if collectionPrefix == "" {
		collectionPrefix = "mailsift_"
	}

	var opts []option.ClientOption
	if len(credentialsJSON) > 0 {
		creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, firestoreScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Firestore credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	var client *firestore.Client
	var err error

	// Firestore client with custom database
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database, opts...)
	} else {
		client, err = firestore.NewClient(ctx, projectID, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return &FirestoreStorage{
		client:     client,
		projectID:  projectID,
		collection: collectionPrefix + "extractions",
	}, nil
}

// Save stores rec and both rendered artifacts as a single document.
func (s *FirestoreStorage) Save(ctx context.Context, rec *Record) (*Saved, error) {
	jsonName, csvName := artifactNames(rec.ExtractionTime)

	jsonData, err := rec.EncodeJSON()
	if err != nil {
		return nil, err
	}
	csvData := EncodeCSV(rec.emailValues())

	doc := ExtractionDoc{
		SourceFile:     rec.SourceFile,
		ExtractionTime: rec.ExtractionTime,
		TotalEmails:    rec.TotalEmails,
		JSONFile:       jsonName,
		CSVFile:        csvName,
		JSONData:       jsonData,
		CSVData:        csvData,
	}

	docID := strings.TrimSuffix(jsonName, ".json")
	if _, err := s.client.Collection(s.collection).Doc(docID).Set(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store extraction in Firestore: %w", err)
	}

	return &Saved{JSONFile: jsonName, CSVFile: csvName}, nil
}

// Open returns a stored artifact's bytes by filename.
func (s *FirestoreStorage) Open(ctx context.Context, filename string) ([]byte, error) {
	clean := CleanFilename(filename)
	if clean == "" {
		return nil, ErrArtifactNotFound
	}

	var docID string
	var wantCSV bool
	switch {
	case strings.HasSuffix(clean, ".json"):
		docID = strings.TrimSuffix(clean, ".json")
	case strings.HasSuffix(clean, ".csv"):
		docID = strings.TrimSuffix(clean, ".csv")
		wantCSV = true
	default:
		return nil, ErrArtifactNotFound
	}

	snap, err := s.client.Collection(s.collection).Doc(docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to get extraction from Firestore: %w", err)
	}

	var doc ExtractionDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal extraction: %w", err)
	}

	if wantCSV {
		return doc.CSVData, nil
	}
	return doc.JSONData, nil
}

// List returns up to limit summaries, newest first by extraction time.
func (s *FirestoreStorage) List(ctx context.Context, limit int) ([]Summary, error) {
	query := s.client.Collection(s.collection).OrderBy("extraction_time", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var summaries []Summary
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate extractions: %w", err)
		}

		var doc ExtractionDoc
		if err := snap.DataTo(&doc); err != nil {
			log.LogWarnWithFields("storage", "Skipping unparseable extraction document", map[string]any{
				"doc":   snap.Ref.ID,
				"error": err.Error(),
			})
			continue
		}

		source := doc.SourceFile
		if source == "" {
			source = "Unknown"
		}
		summaries = append(summaries, Summary{
			Filename: doc.JSONFile,
			Source:   source,
			Total:    doc.TotalEmails,
			Time:     doc.ExtractionTime.Format(time.RFC3339),
		})
	}

	if summaries == nil {
		summaries = []Summary{}
	}
	return summaries, nil
}

// Clear deletes every extraction document.
func (s *FirestoreStorage) Clear(ctx context.Context) (int, error) {
	iter := s.client.Collection(s.collection).Documents(ctx)
	return s.deleteAll(ctx, iter)
}

// Prune deletes extractions older than cutoff or beyond the newest keep
// records.
func (s *FirestoreStorage) Prune(ctx context.Context, cutoff time.Time, keep int) (int, error) {
	removed := 0

	if !cutoff.IsZero() {
		iter := s.client.Collection(s.collection).
			Where("extraction_time", "<", cutoff).
			Documents(ctx)
		n, err := s.deleteAll(ctx, iter)
		removed += n
		if err != nil {
			return removed, err
		}
	}

	if keep > 0 {
		iter := s.client.Collection(s.collection).
			OrderBy("extraction_time", firestore.Desc).
			Offset(keep).
			Documents(ctx)
		n, err := s.deleteAll(ctx, iter)
		removed += n
		if err != nil {
			return removed, err
		}
	}

	return removed, nil
}

// Close closes the Firestore client.
func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}

// deleteAll batch-deletes every document the iterator yields. Each document
// holds a JSON+CSV pair, so the removed count advances by two per document.
func (s *FirestoreStorage) deleteAll(ctx context.Context, iter *firestore.DocumentIterator) (int, error) {
	defer iter.Stop()

	removed := 0
	batch := s.client.Batch()
	batchSize := 0
	const maxBatchSize = 500 // Firestore batch write limit

	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return removed, fmt.Errorf("failed to iterate extractions for deletion: %w", err)
		}

		batch.Delete(snap.Ref)
		batchSize++

		if batchSize >= maxBatchSize {
			if _, err := batch.Commit(ctx); err != nil {
				return removed, fmt.Errorf("failed to commit batch: %w", err)
			}
			removed += batchSize * 2
			batch = s.client.Batch()
			batchSize = 0
		}
	}

	if batchSize > 0 {
		if _, err := batch.Commit(ctx); err != nil {
			return removed, fmt.Errorf("failed to commit final batch: %w", err)
		}
		removed += batchSize * 2
	}

	return removed, nil
}
