package model

// Assessment is the cognitive-state report produced after the dialogue.
type Assessment struct {
	MentalModel        *MentalModelDevelopment `json:"mental_model_development"`
	LearningPatterns   LearningPatterns        `json:"learning_patterns"`
	CognitiveSkills    CognitiveSkills         `json:"cognitive_skills_demonstrated"`
	PersonaConsistency PersonaConsistency      `json:"persona_consistency"`
	Recommendations    Recommendations         `json:"recommendations"`
	Overall            *OverallAssessment      `json:"overall_assessment"`
	Error              string                  `json:"error,omitempty"`
}

// MentalModelDevelopment describes how the student's knowledge evolved.
type MentalModelDevelopment struct {
	InitialState             string   `json:"initial_state"`
	FinalState               string   `json:"final_state"`
	KeyBreakthroughs         []string `json:"key_breakthroughs"`
	PersistentMisconceptions []string `json:"persistent_misconceptions"`
}

// LearningPatterns describes how the student learned.
type LearningPatterns struct {
	PreferredLearningStyle string `json:"preferred_learning_style"`
	ResponseToGuidance     string `json:"response_to_guidance"`
	QuestionAskingBehavior string `json:"question_asking_behavior"`
	ConfidenceProgression  string `json:"confidence_progression"`
}

// CognitiveSkills rates demonstrated skills (poor/developing/good/excellent).
type CognitiveSkills struct {
	AnalyticalThinking    string `json:"analytical_thinking"`
	ConceptualConnections string `json:"conceptual_connections"`
	SelfReflection        string `json:"self_reflection"`
	KnowledgeApplication  string `json:"knowledge_application"`
}

// PersonaConsistency describes how closely the student matched its persona.
type PersonaConsistency struct {
	TraitAlignment     string   `json:"trait_alignment"`
	AuthenticBehaviors []string `json:"authentic_behaviors"`
	PersonaDevelopment string   `json:"persona_development"`
}

// Recommendations lists suggested next steps.
type Recommendations struct {
	NextLearningSteps  []string `json:"next_learning_steps"`
	TeachingStrategies []string `json:"teaching_strategies"`
	KnowledgeGaps      []string `json:"knowledge_gaps"`
}

// OverallAssessment is the headline summary of the report.
type OverallAssessment struct {
	LearningEffectiveness      string `json:"learning_effectiveness"`
	EngagementLevel            string `json:"engagement_level"`
	ReadinessForAdvancedTopics string `json:"readiness_for_advanced_topics"`
	Summary                    string `json:"summary"`
}

// Summary is derived from the transcript at loop exit.
type Summary struct {
	TotalIterations     int      `json:"total_iterations"`
	ConversationLength  int      `json:"conversation_length"`
	LearningProgression []string `json:"learning_progression"`
}
