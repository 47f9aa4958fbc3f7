// Package apitest is an in-memory stand-in for the awards REST API. It keeps
// the server-side contracts the bot relies on: one vote per voter and
// category, 409 on duplicate nominee names, cascading deletes and the
// winners report.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/maaaruch/tg-awards-bot/internal/domain"
)

const AlreadyVotedMessage = "You have already voted in this category."

type voter struct {
	id    domain.VoterID
	name  string
	email string
	phone string
}

type vote struct {
	voter      string
	categoryID int64
	nomineeID  int64
}

type Server struct {
	AdminKey string

	// StringVoterIDs makes sign-in hand out string ids instead of numbers.
	StringVoterIDs bool

	mu          sync.Mutex
	nextID      int64
	categories  []domain.Category
	nominees    []domain.Nominee
	nominations []domain.Nomination
	votes       []vote
	voters      map[string]voter // by email
	failLinks   map[int64]bool   // category ids whose links fail
	failPaths   map[string]int
	requests    []string
}

func New(adminKey string) *Server {
	return &Server{
		AdminKey:  adminKey,
		nextID:    1,
		voters:    make(map[string]voter),
		failLinks: make(map[int64]bool),
		failPaths: make(map[string]int),
	}
}

// Start serves s on a test server that is closed with the test.
func Start(t testing.TB, adminKey string) (*Server, *httptest.Server) {
	t.Helper()
	s := New(adminKey)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.record, s.injectFailures)

	pub := r.Group("/api/public")
	pub.POST("/signin", s.signIn)
	pub.GET("/categories-nominees", s.categoriesNominees)
	pub.GET("/voter-votes/:voterId", s.voterVotes)
	pub.POST("/vote", s.vote)

	adm := r.Group("/api/admin", s.requireAdminKey)
	adm.GET("/categories", s.listCategories)
	adm.POST("/categories", s.createCategory)
	adm.PATCH("/categories/:id", s.updateCategory)
	adm.DELETE("/categories/:id", s.deleteCategory)
	adm.GET("/nominees", s.listNominees)
	adm.POST("/nominees", s.createNominee)
	adm.PATCH("/nominees/:id", s.updateNominee)
	adm.DELETE("/nominees/:id", s.deleteNominee)
	adm.GET("/nominations", s.listNominations)
	adm.POST("/nominations", s.createNomination)
	adm.GET("/winners", s.winners)

	return r
}

// ---------- Seeding and inspection ----------

func (s *Server) AddCategory(name, description string) domain.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := domain.Category{ID: s.id(), Name: name, Description: description}
	s.categories = append(s.categories, c)
	return c
}

// AddNominee creates a nominee linked to the given categories.
func (s *Server) AddNominee(name string, categoryIDs ...int64) domain.Nominee {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := domain.Nominee{ID: s.id(), Name: name}
	s.nominees = append(s.nominees, n)
	for _, cid := range categoryIDs {
		s.nominations = append(s.nominations, domain.Nomination{CategoryID: cid, NomineeID: n.ID})
	}
	return n
}

func (s *Server) RecordVote(voterID string, categoryID, nomineeID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes = append(s.votes, vote{voter: voterID, categoryID: categoryID, nomineeID: nomineeID})
}

// FailLinksFor makes every nomination link into categoryID fail with a 500.
func (s *Server) FailLinksFor(categoryID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLinks[categoryID] = true
}

// FailPath answers every request whose "METHOD /path" matches with status.
func (s *Server) FailPath(methodAndPath string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPaths[methodAndPath] = status
}

// Requests lists "METHOD /path" for every request served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// RecordedNominee returns the nominee a voter holds in a category.
func (s *Server) RecordedNominee(voterID string, categoryID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.votes {
		if v.voter == voterID && v.categoryID == categoryID {
			return v.nomineeID, true
		}
	}
	return 0, false
}

func (s *Server) Counts() (categories, nominees, nominations, votes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.categories), len(s.nominees), len(s.nominations), len(s.votes)
}

func (s *Server) Category(id int64) (domain.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Category{}, false
}

func (s *Server) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// ---------- Middleware ----------

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.requests = append(s.requests, c.Request.Method+" "+c.Request.URL.Path)
	s.mu.Unlock()
	c.Next()
}

func (s *Server) injectFailures(c *gin.Context) {
	s.mu.Lock()
	status, ok := s.failPaths[c.Request.Method+" "+c.Request.URL.Path]
	s.mu.Unlock()
	if ok {
		c.AbortWithStatusJSON(status, gin.H{"message": "injected failure"})
		return
	}
	c.Next()
}

func (s *Server) requireAdminKey(c *gin.Context) {
	if c.GetHeader("X-Admin-Key") != s.AdminKey || s.AdminKey == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized: invalid admin key."})
		return
	}
	c.Next()
}

// ---------- Public ----------

func (s *Server) signIn(c *gin.Context) {
	var in struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body."})
		return
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Phone) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Name, email and phone are required."})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(in.Email))
	if v, ok := s.voters[key]; ok {
		c.JSON(http.StatusOK, gin.H{"voterId": v.id, "message": "Welcome back, " + v.name + "."})
		return
	}

	n := s.id()
	var id domain.VoterID
	if s.StringVoterIDs {
		id = domain.NewVoterID("v-" + strconv.FormatInt(n, 10))
	} else {
		id = domain.NewVoterID(strconv.FormatInt(n, 10))
	}
	s.voters[key] = voter{id: id, name: in.Name, email: in.Email, phone: in.Phone}
	c.JSON(http.StatusOK, gin.H{"voterId": id, "message": "Sign-in successful."})
}

func (s *Server) categoriesNominees(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.stitched())
}

func (s *Server) voterVotes(c *gin.Context) {
	voterID := c.Param("voterId")

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []domain.RecordedVote{}
	for _, v := range s.votes {
		if v.voter == voterID {
			out = append(out, domain.RecordedVote{CategoryID: v.categoryID, NomineeID: v.nomineeID})
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) vote(c *gin.Context) {
	var in domain.Vote
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body."})
		return
	}
	if in.VoterID.IsZero() || in.CategoryID == 0 || in.NomineeID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "voterId, categoryId and nomineeId are required."})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.linked(in.CategoryID, in.NomineeID) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Nominee is not nominated in this category."})
		return
	}
	for _, v := range s.votes {
		if v.voter == in.VoterID.String() && v.categoryID == in.CategoryID {
			c.JSON(http.StatusBadRequest, gin.H{"message": AlreadyVotedMessage})
			return
		}
	}
	s.votes = append(s.votes, vote{voter: in.VoterID.String(), categoryID: in.CategoryID, nomineeID: in.NomineeID})
	c.JSON(http.StatusOK, gin.H{"message": "Your vote has been recorded."})
}

// ---------- Admin: categories ----------

func (s *Server) listCategories(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, append([]domain.Category{}, s.categories...))
}

func (s *Server) createCategory(c *gin.Context) {
	var in struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Category name is required."})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cat := domain.Category{ID: s.id(), Name: strings.TrimSpace(in.Name)}
	s.categories = append(s.categories, cat)
	c.JSON(http.StatusCreated, cat)
}

func (s *Server) updateCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body."})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.categories {
		if s.categories[i].ID != id {
			continue
		}
		if in.Name != nil {
			s.categories[i].Name = *in.Name
		}
		if in.Description != nil {
			s.categories[i].Description = *in.Description
		}
		c.JSON(http.StatusOK, s.categories[i])
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Category not found."})
}

func (s *Server) deleteCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, cat := range s.categories {
		if cat.ID == id {
			idx = i
		}
	}
	if idx < 0 {
		c.JSON(http.StatusNotFound, gin.H{"message": "Category not found."})
		return
	}
	s.categories = append(s.categories[:idx], s.categories[idx+1:]...)
	s.nominations = filter(s.nominations, func(n domain.Nomination) bool { return n.CategoryID != id })
	s.votes = filter(s.votes, func(v vote) bool { return v.categoryID != id })
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted."})
}

// ---------- Admin: nominees ----------

func (s *Server) listNominees(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, append([]domain.Nominee{}, s.nominees...))
}

func (s *Server) createNominee(c *gin.Context) {
	var in struct {
		Name       string `json:"name"`
		CategoryID int64  `json:"category_id"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Nominee name is required."})
		return
	}
	name := strings.TrimSpace(in.Name)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.nominees {
		if !strings.EqualFold(n.Name, name) {
			continue
		}
		// the one-per-category shape allows the same name in other categories
		if in.CategoryID == 0 || s.linked(in.CategoryID, n.ID) {
			c.JSON(http.StatusConflict, gin.H{"message": "Nominee already exists."})
			return
		}
	}
	if in.CategoryID != 0 && !s.hasCategory(in.CategoryID) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Category not found."})
		return
	}

	n := domain.Nominee{ID: s.id(), Name: name}
	s.nominees = append(s.nominees, n)
	if in.CategoryID != 0 {
		s.nominations = append(s.nominations, domain.Nomination{CategoryID: in.CategoryID, NomineeID: n.ID})
	}
	c.JSON(http.StatusCreated, n)
}

func (s *Server) updateNominee(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&in); err != nil || strings.TrimSpace(in.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Nominee name is required."})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.nominees {
		if s.nominees[i].ID == id {
			s.nominees[i].Name = strings.TrimSpace(in.Name)
			c.JSON(http.StatusOK, s.nominees[i])
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Nominee not found."})
}

func (s *Server) deleteNominee(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.nominees)
	s.nominees = filter(s.nominees, func(n domain.Nominee) bool { return n.ID != id })
	if len(s.nominees) == before {
		c.JSON(http.StatusNotFound, gin.H{"message": "Nominee not found."})
		return
	}
	s.nominations = filter(s.nominations, func(n domain.Nomination) bool { return n.NomineeID != id })
	s.votes = filter(s.votes, func(v vote) bool { return v.nomineeID != id })
	c.JSON(http.StatusOK, gin.H{"message": "Nominee deleted."})
}

// ---------- Admin: nominations and winners ----------

func (s *Server) listNominations(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, append([]domain.Nomination{}, s.nominations...))
}

func (s *Server) createNomination(c *gin.Context) {
	var in domain.Nomination
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body."})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLinks[in.CategoryID] {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create nomination."})
		return
	}
	if !s.hasCategory(in.CategoryID) || !s.hasNominee(in.NomineeID) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Category or nominee not found."})
		return
	}
	if s.linked(in.CategoryID, in.NomineeID) {
		c.JSON(http.StatusConflict, gin.H{"message": "Nomination already exists."})
		return
	}
	s.nominations = append(s.nominations, in)
	c.JSON(http.StatusCreated, in)
}

func (s *Server) winners(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CategoryResult, 0, len(s.categories))
	for _, cat := range s.stitched() {
		res := domain.CategoryResult{CategoryName: cat.Name, FullTally: []domain.TallyEntry{}}
		for i, n := range cat.Nominees {
			e := domain.TallyEntry{ID: n.ID, Name: n.Name}
			for _, v := range s.votes {
				if v.categoryID == cat.ID && v.nomineeID == n.ID {
					e.VoteCount++
				}
			}
			res.FullTally = append(res.FullTally, e)
			if i == 0 || e.VoteCount > res.Winner.VoteCount {
				res.Winner = e
			}
		}
		out = append(out, res)
	}
	c.JSON(http.StatusOK, out)
}

// ---------- Helpers (callers hold s.mu) ----------

func (s *Server) stitched() []domain.CategoryWithNominees {
	out := make([]domain.CategoryWithNominees, 0, len(s.categories))
	for _, cat := range s.categories {
		item := domain.CategoryWithNominees{Category: cat, Nominees: []domain.Nominee{}}
		for _, link := range s.nominations {
			if link.CategoryID != cat.ID {
				continue
			}
			for _, n := range s.nominees {
				if n.ID == link.NomineeID {
					item.Nominees = append(item.Nominees, n)
				}
			}
		}
		out = append(out, item)
	}
	return out
}

func (s *Server) linked(categoryID, nomineeID int64) bool {
	for _, n := range s.nominations {
		if n.CategoryID == categoryID && n.NomineeID == nomineeID {
			return true
		}
	}
	return false
}

func (s *Server) hasCategory(id int64) bool {
	for _, c := range s.categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

func (s *Server) hasNominee(id int64) bool {
	for _, n := range s.nominees {
		if n.ID == id {
			return true
		}
	}
	return false
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("invalid id %q", c.Param("id"))})
		return 0, false
	}
	return id, true
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
