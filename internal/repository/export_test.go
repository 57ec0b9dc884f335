package repository

import "github.com/noah-isme/coursevault-api/internal/models"

// Drift replaces the private copy of code with mutate's result, or drops it
// when mutate returns nil. The public copy is left alone.
func (r *MemoryCertificateRepository) Drift(code string, mutate func(private *models.Certificate) *models.Certificate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	pub, ok := r.public[code]
	if !ok {
		return false
	}
	key := learnerCourseKey{pub.UserID, pub.CourseID}
	next := mutate(r.private[key].Clone())
	if next == nil {
		delete(r.private, key)
		return true
	}
	r.private[key] = next.Clone()
	return true
}
