package clinic

import (
	"context"
	"fmt"
)

type defaultFAQCategory struct {
	name  string
	items []FAQItem
}

var defaultFAQ = []defaultFAQCategory{
	{
		name: "Informações Gerais",
		items: []FAQItem{
			{
				IntentKey:        "conhecer_servicos",
				ExampleQuestions: "Quais serviços vocês oferecem?; Quais as especialidades da clínica?; Qual o foco de atendimento de vocês?",
				Answer:           "Olá! Oferecemos uma variedade de serviços focados em [Sua Especialidade Principal]. Para ver a lista completa, acesse nosso site: [Link para o Site]. Gostaria de saber sobre algo específico?",
			},
			{
				IntentKey:        "conhecer_profissionais",
				ExampleQuestions: "Quais profissionais atendem na clínica?; Quem é o especialista em [área]?",
				Answer:           "Nossa equipe é formada por profissionais qualificados e dedicados. O responsável pelos atendimentos é o(a) [Nome do Profissional Principal].",
			},
			{
				IntentKey:        "localizacao_contato",
				ExampleQuestions: "Onde fica a clínica?; Qual o endereço de vocês?; Qual o horário de funcionamento?; Qual o telefone de contato?",
				Answer:           "Estamos localizados em [Seu Endereço Completo]. Nosso horário de funcionamento é de [Seus Dias de Funcionamento], das [Início] às [Fim]. Nosso telefone para contato é [Seu Telefone].",
			},
		},
	},
	{
		name: "Convênios e Pagamentos",
		items: []FAQItem{
			{
				IntentKey:        "verificar_convenios",
				ExampleQuestions: "Vocês aceitam o convênio [Nome]?; Meu plano tem cobertura?",
				Answer:           "No momento, atendemos de forma particular. Oferecemos recibo para que você possa solicitar o reembolso junto ao seu plano de saúde, caso ele ofereça essa opção. Como posso ajudar?",
			},
			{
				IntentKey:        "detalhes_pagamento",
				ExampleQuestions: "Posso pagar com cartão de crédito?; Vocês parcelam?; Aceitam Pix?",
				Answer:           "Sim! Aceitamos pagamentos via Pix, dinheiro, cartão de crédito e débito. Se precisar de mais alguma informação, é só perguntar!",
			},
		},
	},
	{
		name: "Sobre as Consultas",
		items: []FAQItem{
			{
				IntentKey:        "primeira_consulta",
				ExampleQuestions: "Como funciona a primeira consulta?; Vocês estão aceitando novos pacientes?",
				Answer:           "Olá! Sim, estamos aceitando novos pacientes. A primeira consulta é um momento para nos conhecermos melhor e definirmos juntos os próximos passos. Ela tem duração de aproximadamente [Duração] minutos.",
			},
			{
				IntentKey:        "preparacao_consulta",
				ExampleQuestions: "O que preciso levar no dia da consulta?; Preciso levar exames antigos?; É necessário jejum?",
				Answer:           "Para sua consulta, por favor, traga um documento de identificação. Se tiver exames recentes relacionados ao motivo da consulta, pode trazê-los também. Não é necessário nenhum preparo específico, como jejum.",
			},
		},
	},
}

// DefaultFAQKeys lists the intent keys every new account starts with.
func DefaultFAQKeys() []string {
	var keys []string
	for _, cat := range defaultFAQ {
		for _, item := range cat.items {
			keys = append(keys, item.IntentKey)
		}
	}
	return keys
}

// SeedDefaultFAQ stores the default FAQ for a new account.
func SeedDefaultFAQ(ctx context.Context, store Store, accountID string) error {
	for _, cat := range defaultFAQ {
		for _, item := range cat.items {
			item.AccountID = accountID
			item.Category = cat.name
			if err := store.UpsertFAQ(ctx, &item); err != nil {
				return fmt.Errorf("clinic: seed faq %s: %w", item.IntentKey, err)
			}
		}
	}
	return nil
}
