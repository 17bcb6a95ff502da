package repositories

// ParkhausDbRepository carries every repository method against the primary
// database. One value is shared by all usecases.
type ParkhausDbRepository struct{}
