package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/provider-ingest/constants"
	"github.com/joseph-ayodele/provider-ingest/db/ent/schema/utils"
)

// Provider is one licensed child care center, school, after-school program or camp.
type Provider struct{ ent.Schema }

func (Provider) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "providers"},
	}
}

func (Provider) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).
			Default(uuid.New).
			Immutable().
			StorageKey("id"),
		// "license:NJ123", "camp:1234" or "composite:<hash>"
		field.String("natural_key").NotEmpty().Unique(),
		field.String("slug").NotEmpty().Unique().MaxLen(96),
		field.String("name").NotEmpty(),
		field.String("address").NotEmpty(),
		field.String("city").NotEmpty(),
		field.String("state").Default(""),
		field.String("zip_code").Optional().Nillable(),
		field.String("county").Optional().Nillable(),
		field.String("borough").Optional().Nillable(),
		field.String("phone").Optional().Nillable(),
		field.String("email").Optional().Nillable(),
		field.String("website").Default(""),
		field.String("description").Default(""),
		field.Float("monthly_price").Default(0).
			SchemaType(map[string]string{dialect.Postgres: "double precision"}),
		field.String("type").
			Validate(utils.EnumValidator(constants.ProviderTypeStrings()...)),
		field.Int("age_min_months").Optional().Nillable().NonNegative(),
		field.Int("age_max_months").Optional().Nillable().NonNegative(),
		field.Int("age_range_min").Default(0),
		field.Int("age_range_max").Default(0),
		field.String("ages_served_raw").Optional().Nillable(),
		field.Int("capacity").Optional().Nillable().NonNegative(),
		field.String("license_number").Optional().Nillable().Unique(),
		field.String("camp_id").Optional().Nillable().Unique(),
		field.String("camp_owner").Optional().Nillable(),
		field.String("camp_director").Optional().Nillable(),
		field.String("health_director").Optional().Nillable(),
		field.String("evaluation").Optional().Nillable(),
		field.Int("doh_inspection_year").Optional().Nillable(),
		field.String("doh_report_url").Optional().Nillable(),
		field.String("source").
			Validate(utils.EnumValidator(constants.SourceStrings()...)),
		field.String("source_url").Optional().Nillable(),
		field.Time("source_as_of_date").Optional().Nillable().
			SchemaType(map[string]string{dialect.Postgres: "date"}),
		field.Bool("is_verified_by_gov").Default(false),
		field.Bool("is_profile_public").Default(true),
		field.Float("lat").Optional().Nillable(),
		field.Float("lng").Optional().Nillable(),
		field.String("geocode_status").
			Default(string(constants.GeocodeNone)).
			Validate(utils.EnumValidator(
				string(constants.GeocodeOK),
				string(constants.GeocodePartial),
				string(constants.GeocodeNone),
			)),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (Provider) Indexes() []ent.Index {
	return []ent.Index{
		// fallback match
		index.Fields("name", "address", "city"),
		index.Fields("source", "type"),
	}
}
