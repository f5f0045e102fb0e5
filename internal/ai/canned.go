package ai

import (
	"hash/fnv"
	"strings"
)

type cannedRule struct {
	keywords []string
	answer   string
}

var cannedRules = []cannedRule{
	{
		keywords: []string{"attestation", "certificat"},
		answer:   "Pour obtenir une attestation de scolarité, vous devez vous adresser au bureau des affaires académiques avec votre carte d'étudiant et remplir le formulaire de demande. Le délai de traitement est généralement de 2 à 5 jours ouvrables.",
	},
	{
		keywords: []string{"inscription", "réinscription"},
		answer:   "Les inscriptions se font généralement en début d'année universitaire. Vous devez fournir les documents requis selon votre niveau d'études. Consultez le calendrier académique pour les dates exactes.",
	},
	{
		keywords: []string{"bourse", "aide financière"},
		answer:   "Les demandes de bourse doivent être déposées selon le calendrier établi par l'université. Les critères d'attribution incluent les résultats académiques et la situation sociale.",
	},
	{
		keywords: []string{"stage", "convention"},
		answer:   "Pour effectuer un stage, vous devez obtenir une convention de stage signée par l'université, l'entreprise et vous-même. Adressez-vous au service des stages pour les démarches.",
	},
	{
		keywords: []string{"absence", "justificatif"},
		answer:   "Les absences doivent être justifiées par des documents officiels (certificat médical, attestation, etc.). Contactez votre responsable pédagogique dans les plus brefs délais.",
	},
}

var cannedDefaults = []string{
	"Je comprends votre question concernant les démarches administratives. Cependant, je ne trouve pas cette information spécifique dans les documents officiels actuellement disponibles dans la base de données.",
	"Pour cette demande administrative, je vous recommande de vous rapprocher du bureau des affaires académiques. Ils pourront vous fournir les informations précises selon votre situation.",
	"Selon la procédure habituelle de l'université, cette démarche nécessite généralement les documents suivants : une demande écrite, une copie de votre carte d'étudiant, et les justificatifs appropriés.",
	"Cette question concerne les réglementations universitaires. Je vous conseille de consulter le règlement intérieur de l'établissement ou de contacter directement l'administration.",
	"Les délais pour ce type de demande sont généralement de 5 à 10 jours ouvrables. Cependant, je vous recommande de vérifier les délais exacts auprès du service concerné.",
}

// CannedAnswer picks a prepared French answer for question. Keyword rules are
// tried in order; otherwise a default is chosen from a hash of the question so
// the same question always gets the same answer.
func CannedAnswer(question string) string {
	q := strings.ToLower(question)
	for _, rule := range cannedRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.answer
			}
		}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(q))
	return cannedDefaults[h.Sum32()%uint32(len(cannedDefaults))]
}
