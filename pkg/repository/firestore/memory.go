package firestore

import (
	"context"
	"slices"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/domain/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// maxArrayContainsAny is the Firestore limit of values for an array-contains-any filter.
// Larger tag filters are evaluated client side.
const maxArrayContainsAny = 30

// memoryDoc is the Firestore document representation of model.Memory.
type memoryDoc struct {
	ID        string             `firestore:"id"`
	Text      string             `firestore:"text"`
	TextHash  string             `firestore:"text_hash"`
	Embedding firestore.Vector32 `firestore:"embedding,omitempty"`
	Project   string             `firestore:"project"`
	Tags      []string           `firestore:"tags"`
	CreatedAt int64              `firestore:"created_at"`
	UpdatedAt int64              `firestore:"updated_at"`
	Archived  bool               `firestore:"archived"`
}

func toMemoryDoc(m *model.Memory) *memoryDoc {
	doc := &memoryDoc{
		ID:        string(m.ID),
		Text:      m.Text,
		TextHash:  m.TextHash,
		Project:   m.Project,
		Tags:      m.Tags,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		Archived:  m.Archived,
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if len(m.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(m.Embedding)
	}
	return doc
}

func fromMemoryDoc(d *memoryDoc) *model.Memory {
	m := &model.Memory{
		ID:        model.MemoryID(d.ID),
		Text:      d.Text,
		TextHash:  d.TextHash,
		Project:   d.Project,
		Tags:      d.Tags,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		Archived:  d.Archived,
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	if len(d.Embedding) > 0 {
		m.Embedding = []float32(d.Embedding)
	}
	return m
}

type memoryRepository struct {
	client     *firestore.Client
	collection string
	ready      func() error
}

func newMemoryRepository(client *firestore.Client, ready func() error) *memoryRepository {
	return &memoryRepository{
		client:     client,
		collection: MemoriesCollection,
		ready:      ready,
	}
}

func (r *memoryRepository) memories() *firestore.CollectionRef {
	return r.client.Collection(r.collection)
}

func (r *memoryRepository) active() firestore.Query {
	return r.memories().Where("archived", "==", false)
}

// readAll drains iter into memories. filter may be nil.
func readAll(iter *firestore.DocumentIterator, filter func(*model.Memory) bool) ([]*model.Memory, error) {
	defer iter.Stop()

	memories := make([]*model.Memory, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate memories")
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal memory", goerr.V(model.MemoryIDKey, doc.Ref.ID))
		}

		m := fromMemoryDoc(&d)
		if filter != nil && !filter(m) {
			continue
		}
		memories = append(memories, m)
	}

	return memories, nil
}

func (r *memoryRepository) Put(ctx context.Context, mem *model.Memory) error {
	if err := r.ready(); err != nil {
		return err
	}

	docRef := r.memories().Doc(string(mem.ID))
	if _, err := docRef.Create(ctx, toMemoryDoc(mem)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return goerr.Wrap(model.ErrConflict, "memory ID already exists", goerr.V(model.MemoryIDKey, mem.ID))
		}
		return goerr.Wrap(err, "failed to create memory", goerr.V(model.MemoryIDKey, mem.ID))
	}

	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id model.MemoryID) (*model.Memory, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	doc, err := r.memories().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get memory", goerr.V(model.MemoryIDKey, id))
	}

	var d memoryDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal memory", goerr.V(model.MemoryIDKey, id))
	}

	return fromMemoryDoc(&d), nil
}

func (r *memoryRepository) GetByHash(ctx context.Context, textHash string) (*model.Memory, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	iter := r.active().
		Where("text_hash", "==", textHash).
		OrderBy("created_at", firestore.Asc).
		Limit(1).
		Documents(ctx)
	memories, err := readAll(iter, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get memory by hash", goerr.V("text_hash", textHash))
	}
	if len(memories) == 0 {
		return nil, nil
	}
	return memories[0], nil
}

// filterQuery applies project and tag conditions. It returns a client side filter
// when the tag list exceeds the array-contains-any limit.
func (r *memoryRepository) filterQuery(filter model.ListFilter) (firestore.Query, func(*model.Memory) bool) {
	q := r.active()
	if filter.Project != "" {
		q = q.Where("project", "==", filter.Project)
	}

	switch {
	case len(filter.Tags) == 0:
		return q, nil
	case len(filter.Tags) <= maxArrayContainsAny:
		return q.Where("tags", "array-contains-any", filter.Tags), nil
	default:
		return q, func(m *model.Memory) bool { return m.HasAnyTag(filter.Tags) }
	}
}

func (r *memoryRepository) List(ctx context.Context, filter model.ListFilter) ([]*model.Memory, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	q, clientFilter := r.filterQuery(filter)
	q = q.OrderBy("created_at", firestore.Desc)

	if clientFilter == nil {
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return readAll(q.Documents(ctx), nil)
	}

	all, err := readAll(q.Documents(ctx), clientFilter)
	if err != nil {
		return nil, err
	}
	return paginate(all, filter.Offset, filter.Limit), nil
}

func paginate(memories []*model.Memory, offset, limit int) []*model.Memory {
	start := min(max(offset, 0), len(memories))
	end := len(memories)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return slices.Clone(memories[start:end])
}

func (r *memoryRepository) Count(ctx context.Context, filter model.ListFilter) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}

	q, clientFilter := r.filterQuery(filter)
	if clientFilter != nil {
		all, err := readAll(q.Documents(ctx), clientFilter)
		if err != nil {
			return 0, err
		}
		return len(all), nil
	}

	res, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count memories")
	}
	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, goerr.New("unexpected count aggregation result", goerr.V("result", res))
	}
	return int(v.GetIntegerValue()), nil
}

func (r *memoryRepository) HardDelete(ctx context.Context, id model.MemoryID) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}

	docRef := r.memories().Doc(string(id))
	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to get memory", goerr.V(model.MemoryIDKey, id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return false, goerr.Wrap(err, "failed to delete memory", goerr.V(model.MemoryIDKey, id))
	}
	return true, nil
}

func (r *memoryRepository) SoftDelete(ctx context.Context, id model.MemoryID) (bool, error) {
	if err := r.ready(); err != nil {
		return false, err
	}

	docRef := r.memories().Doc(string(id))
	archived := false
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		archived = false
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return nil
			}
			return goerr.Wrap(err, "failed to get memory", goerr.V(model.MemoryIDKey, id))
		}

		var d memoryDoc
		if err := doc.DataTo(&d); err != nil {
			return goerr.Wrap(err, "failed to unmarshal memory", goerr.V(model.MemoryIDKey, id))
		}
		if d.Archived {
			return nil
		}

		if err := tx.Update(docRef, []firestore.Update{{Path: "archived", Value: true}}); err != nil {
			return goerr.Wrap(err, "failed to archive memory", goerr.V(model.MemoryIDKey, id))
		}
		archived = true
		return nil
	})
	if err != nil {
		return false, goerr.Wrap(err, "archive transaction failed", goerr.V(model.MemoryIDKey, id))
	}

	return archived, nil
}

func (r *memoryRepository) BulkHardDelete(ctx context.Context, filter model.BulkDeleteFilter) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}

	q := r.memories().Query
	if filter.Project != "" {
		q = q.Where("project", "==", filter.Project)
	}
	if filter.Before != nil {
		q = q.Where("created_at", "<", *filter.Before)
	}

	iter := q.Select().Documents(ctx)
	defer iter.Stop()

	bw := r.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return 0, goerr.Wrap(err, "failed to iterate memories for bulk delete")
		}

		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return 0, goerr.Wrap(err, "failed to enqueue delete", goerr.V(model.MemoryIDKey, doc.Ref.ID))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	deleted := 0
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return deleted, goerr.Wrap(err, "failed to delete memory in bulk")
		}
		deleted++
	}

	return deleted, nil
}

func (r *memoryRepository) ListAllActive(ctx context.Context) ([]*model.Memory, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	return readAll(r.active().OrderBy("created_at", firestore.Desc).Documents(ctx), nil)
}

func (r *memoryRepository) Stats(ctx context.Context) (*model.Stats, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	// Oldest first so that tag frequency ties keep first-seen order.
	memories, err := readAll(r.active().OrderBy("created_at", firestore.Asc).Documents(ctx), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load memories for stats")
	}

	stats := &model.Stats{ByProject: make(map[string]int)}
	tags := model.NewTagCounter()
	for _, m := range memories {
		stats.TotalCount++
		if m.Project != "" {
			stats.ByProject[m.Project]++
		}
		tags.Add(m.Tags...)
		stats.StorageBytes += estimateSize(m)
	}
	stats.TopTags = tags.Top(model.TopTagLimit)

	return stats, nil
}

// estimateSize approximates the document size following Firestore's storage size rules:
// field names and string values count their UTF-8 length plus one, numbers and booleans
// count eight and one bytes.
func estimateSize(m *model.Memory) int64 {
	size := len(MemoriesCollection) + len(m.ID) + 1 + 32
	size += len("text") + len(m.Text) + 2
	size += len("text_hash") + len(m.TextHash) + 2
	size += len("project") + len(m.Project) + 2
	size += len("embedding") + 1 + 8*len(m.Embedding)
	size += len("tags") + 1
	for _, tag := range m.Tags {
		size += len(tag) + 1
	}
	size += len("created_at") + 1 + 8
	size += len("updated_at") + 1 + 8
	size += len("archived") + 1 + 1
	return int64(size)
}
