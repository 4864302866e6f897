package postgis

const upsertRoadSQL = `
INSERT INTO roads (
	id, geometry, road_type, surface, smoothness,
	name, lanes, oneway, max_speed,
	length, surface_factor, smoothness_factor, effective_speed_kmh, tags
)
VALUES ($1, ST_GeomFromEWKB($2), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::jsonb)
ON CONFLICT (id) DO UPDATE SET
	geometry = EXCLUDED.geometry,
	road_type = EXCLUDED.road_type,
	surface = EXCLUDED.surface,
	smoothness = EXCLUDED.smoothness,
	name = EXCLUDED.name,
	lanes = EXCLUDED.lanes,
	oneway = EXCLUDED.oneway,
	max_speed = EXCLUDED.max_speed,
	length = EXCLUDED.length,
	surface_factor = EXCLUDED.surface_factor,
	smoothness_factor = EXCLUDED.smoothness_factor,
	effective_speed_kmh = EXCLUDED.effective_speed_kmh,
	tags = EXCLUDED.tags,
	updated_at = NOW()`

const upsertSegmentSQL = `
INSERT INTO segments (
	id, road_id, geometry, start_point, end_point,
	length, surface_factor, smoothness_factor, rainy_season_factor,
	oneway, base_speed, effective_speed_kmh, travel_time_seconds, cost
)
VALUES ($1, $2, ST_GeomFromEWKB($3), ST_GeomFromEWKB($4), ST_GeomFromEWKB($5), $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT (id) DO UPDATE SET
	road_id = EXCLUDED.road_id,
	geometry = EXCLUDED.geometry,
	start_point = EXCLUDED.start_point,
	end_point = EXCLUDED.end_point,
	length = EXCLUDED.length,
	surface_factor = EXCLUDED.surface_factor,
	smoothness_factor = EXCLUDED.smoothness_factor,
	rainy_season_factor = EXCLUDED.rainy_season_factor,
	oneway = EXCLUDED.oneway,
	base_speed = EXCLUDED.base_speed,
	effective_speed_kmh = EXCLUDED.effective_speed_kmh,
	travel_time_seconds = EXCLUDED.travel_time_seconds,
	cost = EXCLUDED.cost,
	updated_at = NOW()`

const upsertPOISQL = `
INSERT INTO pois (
	id, geometry, category, subcategory, name,
	address, phone, opening_hours, website, is_24_7, formatted_address,
	name_normalized, search_text, has_name, tags
)
VALUES ($1, ST_GeomFromEWKB($2), $3, $4, $5, $6::jsonb, $7, $8, $9, $10, $11, $12, $13, $14, $15::jsonb)
ON CONFLICT (id) DO UPDATE SET
	geometry = EXCLUDED.geometry,
	category = EXCLUDED.category,
	subcategory = EXCLUDED.subcategory,
	name = EXCLUDED.name,
	address = EXCLUDED.address,
	phone = EXCLUDED.phone,
	opening_hours = EXCLUDED.opening_hours,
	website = EXCLUDED.website,
	is_24_7 = EXCLUDED.is_24_7,
	formatted_address = EXCLUDED.formatted_address,
	name_normalized = EXCLUDED.name_normalized,
	search_text = EXCLUDED.search_text,
	has_name = EXCLUDED.has_name,
	tags = EXCLUDED.tags,
	updated_at = NOW()`

// parent_zone_id survives a re-import until the hierarchy is recomputed.
const upsertZoneSQL = `
INSERT INTO zones (
	id, geometry, zone_type, name, level, parent_zone_id,
	iso_code, population, area, centroid, tags
)
VALUES ($1, ST_Multi(ST_GeomFromEWKB($2)), $3, $4, $5, $6, $7, $8, $9, ST_GeomFromEWKB($10), $11::jsonb)
ON CONFLICT (id) DO UPDATE SET
	geometry = EXCLUDED.geometry,
	zone_type = EXCLUDED.zone_type,
	name = EXCLUDED.name,
	level = EXCLUDED.level,
	parent_zone_id = COALESCE(EXCLUDED.parent_zone_id, zones.parent_zone_id),
	iso_code = EXCLUDED.iso_code,
	population = EXCLUDED.population,
	area = EXCLUDED.area,
	centroid = EXCLUDED.centroid,
	tags = EXCLUDED.tags,
	updated_at = NOW()`

const linkZoneLevelSQL = `
UPDATE zones AS child
SET parent_zone_id = (
	SELECT parent.id
	FROM zones AS parent
	WHERE parent.level = $1
	  AND ST_Contains(parent.geometry, ST_Centroid(child.geometry))
	ORDER BY ST_Area(parent.geometry) ASC
	LIMIT 1
)
WHERE child.level = $2`
