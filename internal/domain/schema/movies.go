package schema

// Table names of the movies catalogue.
const (
	TableGenre          = "genre"
	TablePerson         = "person"
	TableFilmwork       = "film_work"
	TableGenreFilmwork  = "genre_film_work"
	TablePersonFilmwork = "person_film_work"
)

// Enum domains.
var (
	FilmTypes = []string{"movie", "short", "tvSeries"}
	Roles     = []string{"actor", "writer", "director"}
)

func idField() Field {
	return Field{Name: "id", Source: "id", Dest: "id", Kind: KindUUID}
}

// The source names the audit pair created_at/updated_at, the destination
// created/modified.
func createdField() Field {
	return Field{Name: "created_at", Source: "created_at", Dest: "created", Kind: KindTimestamp}
}

func updatedField() Field {
	return Field{Name: "updated_at", Source: "updated_at", Dest: "modified", Kind: KindTimestamp}
}

func refField(name, parent string) Field {
	return Field{Name: name, Source: name, Dest: name, Kind: KindUUID, References: parent}
}

// Movies returns the registry of the five movies catalogue tables.
func Movies() *Registry {
	return MustNew(
		Table{
			Name:     TableGenre,
			Identity: "id",
			Fields: []Field{
				idField(),
				{Name: "name", Source: "name", Dest: "name", Kind: KindText},
				{Name: "description", Source: "description", Dest: "description", Kind: KindText, Nullable: true},
				createdField(),
				updatedField(),
			},
			Unique: [][]string{{"name"}},
		},
		Table{
			Name:     TablePerson,
			Identity: "id",
			Fields: []Field{
				idField(),
				{Name: "full_name", Source: "full_name", Dest: "full_name", Kind: KindText},
				createdField(),
				updatedField(),
			},
		},
		Table{
			Name:     TableFilmwork,
			Identity: "id",
			Fields: []Field{
				idField(),
				{Name: "title", Source: "title", Dest: "title", Kind: KindText},
				{Name: "description", Source: "description", Dest: "description", Kind: KindText, Nullable: true},
				{Name: "creation_date", Source: "creation_date", Dest: "creation_date", Kind: KindDate, Nullable: true},
				{Name: "file_path", Source: "file_path", Dest: "file_path", Kind: KindText, Nullable: true},
				{Name: "rating", Source: "rating", Dest: "rating", Kind: KindFloat, Nullable: true, Range: &Range{Min: 0, Max: 10}},
				{Name: "film_type", Source: "type", Dest: "type", Kind: KindEnum, Enum: FilmTypes},
				createdField(),
				updatedField(),
			},
		},
		Table{
			Name:     TableGenreFilmwork,
			Identity: "id",
			Fields: []Field{
				idField(),
				refField("film_work_id", TableFilmwork),
				refField("genre_id", TableGenre),
				createdField(),
			},
			Unique: [][]string{{"film_work_id", "genre_id"}},
		},
		Table{
			Name:     TablePersonFilmwork,
			Identity: "id",
			Fields: []Field{
				idField(),
				refField("film_work_id", TableFilmwork),
				refField("person_id", TablePerson),
				{Name: "role", Source: "role", Dest: "role", Kind: KindEnum, Enum: Roles},
				createdField(),
			},
			Unique: [][]string{{"film_work_id", "person_id", "role"}},
		},
	)
}
