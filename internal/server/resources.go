package server

import (
	"context"
	"strconv"

	"github.com/johann/primevista/internal/model"
	"github.com/johann/primevista/internal/storage"
)

// formField describes one column as the admin panel shows it.
type formField struct {
	Name     string
	Label    string
	Kind     string // text, textarea, email, url or image
	Required bool
}

// resourceMeta is what templates and routes need to know about an entity.
type resourceMeta struct {
	Slug     string
	Title    string
	Singular string
	Fields   []formField
	// Editable resources get create and edit forms; the rest are list and
	// delete only.
	Editable bool
	// ImageField names the column that accepts an uploaded image, if any.
	ImageField string
}

// record is an entity flattened to strings for templates and forms.
type record struct {
	ID        int64
	Values    map[string]string
	CreatedAt model.Timestamp
}

// resource adapts one storage collection to the generic admin handlers.
type resource interface {
	meta() resourceMeta
	list(ctx context.Context) ([]record, error)
	get(ctx context.Context, id int64) (record, error)
	create(ctx context.Context, values map[string]string) (record, error)
	update(ctx context.Context, id int64, values map[string]string) (record, error)
	remove(ctx context.Context, id int64) (record, error)
}

type collectionResource[T any] struct {
	resourceMeta
	coll       *storage.Collection[T]
	toRecord   func(T) record
	fromValues func(map[string]string) *T
}

func (r *collectionResource[T]) meta() resourceMeta { return r.resourceMeta }

func (r *collectionResource[T]) list(ctx context.Context) ([]record, error) {
	rows, err := r.coll.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]record, len(rows))
	for i, row := range rows {
		out[i] = r.toRecord(row)
	}
	return out, nil
}

func (r *collectionResource[T]) get(ctx context.Context, id int64) (record, error) {
	return r.wrap(r.coll.Get(ctx, id))
}

func (r *collectionResource[T]) create(ctx context.Context, values map[string]string) (record, error) {
	return r.wrap(r.coll.Create(ctx, r.fromValues(values)))
}

func (r *collectionResource[T]) update(ctx context.Context, id int64, values map[string]string) (record, error) {
	return r.wrap(r.coll.Update(ctx, id, r.fromValues(values)))
}

func (r *collectionResource[T]) remove(ctx context.Context, id int64) (record, error) {
	return r.wrap(r.coll.Delete(ctx, id))
}

func (r *collectionResource[T]) wrap(row T, err error) (record, error) {
	if err != nil {
		return record{}, err
	}
	return r.toRecord(row), nil
}

// newResources lists the admin entities in navigation order.
func newResources(store *storage.Storage) []resource {
	return []resource{
		&collectionResource[model.Service]{
			resourceMeta: resourceMeta{
				Slug: "services", Title: "Services", Singular: "Service", Editable: true, ImageField: "icon",
				Fields: []formField{
					{Name: "title", Label: "Title", Kind: "text", Required: true},
					{Name: "description", Label: "Description", Kind: "textarea", Required: true},
					{Name: "icon", Label: "Icon", Kind: "image"},
				},
			},
			coll: store.Services,
			toRecord: func(v model.Service) record {
				return record{ID: v.ID, CreatedAt: v.CreatedAt, Values: map[string]string{
					"title": v.Title, "description": v.Description, "icon": v.Icon,
				}}
			},
			fromValues: func(m map[string]string) *model.Service {
				return &model.Service{Title: m["title"], Description: m["description"], Icon: m["icon"]}
			},
		},
		&collectionResource[model.Project]{
			resourceMeta: resourceMeta{
				Slug: "projects", Title: "Projects", Singular: "Project", Editable: true, ImageField: "image",
				Fields: []formField{
					{Name: "title", Label: "Title", Kind: "text", Required: true},
					{Name: "description", Label: "Description", Kind: "textarea", Required: true},
					{Name: "image", Label: "Image", Kind: "image"},
					{Name: "link", Label: "Link", Kind: "url"},
				},
			},
			coll: store.Projects,
			toRecord: func(v model.Project) record {
				return record{ID: v.ID, CreatedAt: v.CreatedAt, Values: map[string]string{
					"title": v.Title, "description": v.Description, "image": v.Image, "link": v.Link,
				}}
			},
			fromValues: func(m map[string]string) *model.Project {
				return &model.Project{Title: m["title"], Description: m["description"], Image: m["image"], Link: m["link"]}
			},
		},
		&collectionResource[model.Client]{
			resourceMeta: resourceMeta{
				Slug: "clients", Title: "Clients", Singular: "Client", Editable: true, ImageField: "photo",
				Fields: []formField{
					{Name: "name", Label: "Name", Kind: "text", Required: true},
					{Name: "designation", Label: "Designation", Kind: "text"},
					{Name: "quote", Label: "Quote", Kind: "textarea", Required: true},
					{Name: "photo", Label: "Photo", Kind: "image"},
				},
			},
			coll: store.Clients,
			toRecord: func(v model.Client) record {
				return record{ID: v.ID, CreatedAt: v.CreatedAt, Values: map[string]string{
					"name": v.Name, "designation": v.Designation, "quote": v.Quote, "photo": v.Photo,
				}}
			},
			fromValues: func(m map[string]string) *model.Client {
				return &model.Client{Name: m["name"], Designation: m["designation"], Quote: m["quote"], Photo: m["photo"]}
			},
		},
		&collectionResource[model.Subscriber]{
			resourceMeta: resourceMeta{
				Slug: "subscribers", Title: "Subscribers", Singular: "Subscriber",
				Fields: []formField{
					{Name: "email", Label: "Email", Kind: "email", Required: true},
				},
			},
			coll: store.Subscribers,
			toRecord: func(v model.Subscriber) record {
				return record{ID: v.ID, CreatedAt: v.CreatedAt, Values: map[string]string{"email": v.Email}}
			},
			fromValues: func(m map[string]string) *model.Subscriber {
				return &model.Subscriber{Email: m["email"]}
			},
		},
		&collectionResource[model.ContactRequest]{
			resourceMeta: resourceMeta{
				Slug: "contacts", Title: "Contact requests", Singular: "Contact request",
				Fields: []formField{
					{Name: "full_name", Label: "Full name", Kind: "text", Required: true},
					{Name: "email", Label: "Email", Kind: "email", Required: true},
					{Name: "mobile", Label: "Mobile", Kind: "text", Required: true},
					{Name: "city", Label: "City", Kind: "text", Required: true},
				},
			},
			coll: store.Contacts,
			toRecord: func(v model.ContactRequest) record {
				return record{ID: v.ID, CreatedAt: v.CreatedAt, Values: map[string]string{
					"full_name": v.FullName, "email": v.Email, "mobile": v.Mobile, "city": v.City,
				}}
			},
			fromValues: func(m map[string]string) *model.ContactRequest {
				return &model.ContactRequest{FullName: m["full_name"], Email: m["email"], Mobile: m["mobile"], City: m["city"]}
			},
		},
	}
}

// countFor picks the dashboard count for a resource slug.
func countFor(counts model.Counts, slug string) int {
	switch slug {
	case "services":
		return counts.Services
	case "projects":
		return counts.Projects
	case "clients":
		return counts.Clients
	case "subscribers":
		return counts.Subscribers
	case "contacts":
		return counts.Contacts
	}
	return 0
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil
}
