package config

import (
	"strings"
	"time"
)

// CrawlTarget describes where and what to crawl on one platform for a market.
type CrawlTarget struct {
	Platform      string
	Subreddits    []string // reddit
	Topics        []string // quora
	Keywords      []string
	MinUpvotes    int
	SearchQueries []string
}

// MarketConfig is a registry entry for one target market segment. It is pure
// configuration: crawl targets, generation tone and context, and per-market
// thresholds and intervals.
type MarketConfig struct {
	Name               string
	Description        string
	Targets            []CrawlTarget
	Tone               string
	TargetPain         string
	AgentContext       string
	WorkflowExamples   map[string]string
	MinConfidenceScore float64 // 0 means fall back to the registry default
	CrawlInterval      time.Duration
	MaxPostsPerDay     int
}

// Target returns the crawl target for a platform, or nil.
func (m *MarketConfig) Target(platform string) *CrawlTarget {
	for i := range m.Targets {
		if m.Targets[i].Platform == platform {
			return &m.Targets[i]
		}
	}
	return nil
}

// Registry holds all configured markets. It is an explicit, injectable object
// so schedulers and pipelines can be tested with their own market sets.
type Registry struct {
	markets           map[string]*MarketConfig
	defaultConfidence float64
}

// NewRegistry builds a registry from the given markets. defaultConfidence is
// the MIN_CONFIDENCE_SCORE fallback for markets that omit their own threshold.
func NewRegistry(defaultConfidence float64, markets ...*MarketConfig) *Registry {
	r := &Registry{
		markets:           make(map[string]*MarketConfig, len(markets)),
		defaultConfidence: defaultConfidence,
	}
	for _, m := range markets {
		r.markets[m.Name] = m
	}
	return r
}

// DefaultRegistry returns the registry with the built-in market definitions.
func DefaultRegistry(defaultConfidence float64) *Registry {
	return NewRegistry(defaultConfidence, builtinMarkets()...)
}

// Get returns the configuration for a market, or nil if not registered.
func (r *Registry) Get(name string) *MarketConfig {
	return r.markets[name]
}

// Names returns all registered market names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.markets))
	for name := range r.markets {
		names = append(names, name)
	}
	return names
}

// ForPlatform returns the names of markets that crawl the given platform.
func (r *Registry) ForPlatform(platform string) []string {
	var names []string
	for name, m := range r.markets {
		if m.Target(platform) != nil {
			names = append(names, name)
		}
	}
	return names
}

// MinConfidence returns the effective confidence threshold for a market,
// falling back to the registry default when the market omits its own.
func (r *Registry) MinConfidence(name string) float64 {
	if m := r.markets[name]; m != nil && m.MinConfidenceScore > 0 {
		return m.MinConfidenceScore
	}
	return r.defaultConfidence
}

// WorkflowLinkFor selects a workflow example link for a market by matching
// example keys against the question text, falling back to the first example.
func (r *Registry) WorkflowLinkFor(name, questionText string) string {
	m := r.markets[name]
	if m == nil || len(m.WorkflowExamples) == 0 {
		return ""
	}

	lower := strings.ToLower(questionText)
	for key, url := range m.WorkflowExamples {
		if strings.Contains(lower, strings.ReplaceAll(key, "_", " ")) {
			return url
		}
	}

	// Deterministic fallback: lexically first key.
	first := ""
	for key := range m.WorkflowExamples {
		if first == "" || key < first {
			first = key
		}
	}
	return m.WorkflowExamples[first]
}

func builtinMarkets() []*MarketConfig {
	return []*MarketConfig{
		{
			Name:        "indie_authors",
			Description: "Independent authors, self-publishers, and writers",
			Targets: []CrawlTarget{
				{
					Platform: "reddit",
					Subreddits: []string{
						"selfpublish", "writing", "authors", "kindle",
						"PubTips", "bookmarketing",
					},
					Keywords: []string{
						"book trailer", "author website", "book marketing",
						"book cover video", "author branding", "book promotion",
						"book video", "promote my book", "author platform",
					},
					MinUpvotes: 2,
					SearchQueries: []string{
						"book trailer", "market my book", "promote novel",
					},
				},
				{
					Platform: "quora",
					Topics:   []string{"Self-Publishing", "Book Marketing", "Writing"},
					Keywords: []string{
						"publish my book", "market my book", "book trailer",
						"promote book", "author website",
					},
					MinUpvotes: 0,
				},
			},
			Tone:         "encouraging, creative, supportive",
			TargetPain:   "marketing their books, creating compelling promotional content, building author brand",
			AgentContext: "video for book promotion, author branding, book trailers, reader engagement",
			WorkflowExamples: map[string]string{
				"book_trailer": "https://app.mulan.ai/workflow/book-trailer",
				"author_intro": "https://app.mulan.ai/workflow/author-intro",
				"book_teaser":  "https://app.mulan.ai/workflow/book-teaser",
			},
			MinConfidenceScore: 0.65,
			CrawlInterval:      6 * time.Hour,
			MaxPostsPerDay:     15,
		},
		{
			Name:        "course_creators",
			Description: "Online educators, course creators, and e-learning professionals",
			Targets: []CrawlTarget{
				{
					Platform: "reddit",
					Subreddits: []string{
						"teachonline", "elearning", "Udemy", "coursecreators",
						"instructionaldesign",
					},
					Keywords: []string{
						"course video", "lecture recording", "student engagement",
						"online course", "teaching video", "course creation",
						"video lessons", "explainer video", "tutorial video",
					},
					MinUpvotes: 3,
					SearchQueries: []string{
						"create course videos", "record lectures", "teaching online",
					},
				},
			},
			Tone:         "professional, educational, helpful",
			TargetPain:   "creating engaging course content, lecture recordings, student retention",
			AgentContext: "educational video, course content, lecture recording, student engagement",
			WorkflowExamples: map[string]string{
				"lecture_video": "https://app.mulan.ai/workflow/lecture",
				"course_promo":  "https://app.mulan.ai/workflow/course-promo",
				"explainer":     "https://app.mulan.ai/workflow/explainer",
			},
			MinConfidenceScore: 0.70,
			CrawlInterval:      8 * time.Hour,
			MaxPostsPerDay:     12,
		},
		{
			Name:        "nonprofits",
			Description: "Nonprofit organizations, fundraisers, and social impact professionals",
			Targets: []CrawlTarget{
				{
					Platform: "reddit",
					Subreddits: []string{
						"nonprofit", "fundraising", "charity", "nonprofitmarketing",
					},
					Keywords: []string{
						"fundraising video", "donor outreach", "impact storytelling",
						"nonprofit video", "donation campaign", "charity video",
						"volunteer recruitment", "mission video",
					},
					MinUpvotes: 3,
					SearchQueries: []string{
						"fundraising video", "nonprofit marketing", "impact storytelling",
					},
				},
			},
			Tone:         "empathetic, mission-focused, inspiring",
			TargetPain:   "fundraising, donor engagement, impact storytelling, volunteer recruitment",
			AgentContext: "fundraising video, impact storytelling, donor engagement, cause marketing",
			WorkflowExamples: map[string]string{
				"fundraising":  "https://app.mulan.ai/workflow/fundraising",
				"impact_story": "https://app.mulan.ai/workflow/impact-story",
			},
			CrawlInterval:  12 * time.Hour,
			MaxPostsPerDay: 8,
		},
		{
			// Catch-all for broader video-related queries.
			Name:        "general_video",
			Description: "General video creation, editing, and production",
			Targets: []CrawlTarget{
				{
					Platform: "reddit",
					Subreddits: []string{
						"videoproduction", "videoediting", "Filmmakers",
						"contentcreation",
					},
					Keywords: []string{
						"ai video", "video creation", "video editing", "video tool",
						"make videos", "video generator", "automated video",
						"text to video",
					},
					MinUpvotes: 5,
					SearchQueries: []string{
						"ai video", "automated video", "text to video",
					},
				},
				{
					Platform: "quora",
					Topics:   []string{"Video Editing", "Video Production"},
					Keywords: []string{
						"ai video", "video creation tool", "video generator",
					},
					MinUpvotes: 0,
				},
			},
			Tone:         "helpful, enthusiastic, informative",
			TargetPain:   "video creation, editing complexity, time-consuming production",
			AgentContext: "AI video generation, automated video creation, video editing",
			WorkflowExamples: map[string]string{
				"video_creation": "https://app.mulan.ai/workflow/video-creation",
			},
			CrawlInterval:  6 * time.Hour,
			MaxPostsPerDay: 10,
		},
	}
}
