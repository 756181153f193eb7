package sqlinline

// Every processing request query selects the same column list in this order:
// id, type, status, user_id, project_id, input_assets_ids, output_assets_ids,
// message, created_at, updated_at.

const QInsertProcessingRequest = `--sql 092b2663-ab7c-4776-abcb-a1dbb24415be
insert into processing_requests (
  id,
  type,
  status,
  user_id,
  project_id,
  input_assets_ids,
  output_assets_ids,
  message,
  created_at,
  updated_at
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::uuid,
  $5::uuid,
  $6::uuid[],
  $7::uuid[],
  $8::text,
  now(),
  now()
) returning created_at, updated_at;
`

const QSelectProcessingRequestByID = `--sql ba49a0c4-453a-4447-845f-fa3b414eae2d
select id::text, type, status, user_id::text, project_id::text,
       input_assets_ids::text[], output_assets_ids::text[], message, created_at, updated_at
from processing_requests
where id = $1::uuid
limit 1;
`

const QListProcessingRequests = `--sql e5bffd8f-2186-4be1-9bc3-d9685c9e4f4e
select id::text, type, status, user_id::text, project_id::text,
       input_assets_ids::text[], output_assets_ids::text[], message, created_at, updated_at
from processing_requests
order by created_at asc;
`

const QListProcessingRequestsByUser = `--sql 2d3853f7-651e-40d8-92d0-1ace29b6d935
select id::text, type, status, user_id::text, project_id::text,
       input_assets_ids::text[], output_assets_ids::text[], message, created_at, updated_at
from processing_requests
where user_id = $1::uuid
order by created_at asc;
`

const QListProcessingRequestsByProject = `--sql 772793e7-5401-4511-9e68-0139f1c16810
select id::text, type, status, user_id::text, project_id::text,
       input_assets_ids::text[], output_assets_ids::text[], message, created_at, updated_at
from processing_requests
where project_id = $1::uuid
order by created_at asc;
`

const QListProcessingRequestsByAsset = `--sql a59e51f4-806b-4a36-924b-573da755a40a
select id::text, type, status, user_id::text, project_id::text,
       input_assets_ids::text[], output_assets_ids::text[], message, created_at, updated_at
from processing_requests
where $1::uuid = any(input_assets_ids)
   or $1::uuid = any(output_assets_ids)
order by created_at asc;
`

const QListProcessingRequestsByInputAsset = `--sql 25cb7171-ae16-445a-b8ec-dc06477fb9f4
select id::text, type, status, user_id::text, project_id::text,
       input_assets_ids::text[], output_assets_ids::text[], message, created_at, updated_at
from processing_requests
where $1::uuid = any(input_assets_ids)
order by created_at asc;
`

const QListProcessingRequestsByOutputAsset = `--sql 60e99f5b-9c4e-4e73-b0d2-a15e908218fb
select id::text, type, status, user_id::text, project_id::text,
       input_assets_ids::text[], output_assets_ids::text[], message, created_at, updated_at
from processing_requests
where $1::uuid = any(output_assets_ids)
order by created_at asc;
`

const QListProcessingRequestsByStatus = `--sql 54e61b7e-538d-4986-9bde-bb385bbea73a
select id::text, type, status, user_id::text, project_id::text,
       input_assets_ids::text[], output_assets_ids::text[], message, created_at, updated_at
from processing_requests
where status = $1::text
order by created_at asc;
`

const QUpdateProcessingRequest = `--sql 4f1a51ab-9de7-47e9-b14f-cda8f986e992
update processing_requests
set status = coalesce($2::text, status),
    message = coalesce($3::text, message),
    updated_at = now()
where id = $1::uuid
returning id::text, type, status, user_id::text, project_id::text,
          input_assets_ids::text[], output_assets_ids::text[], message, created_at, updated_at;
`

// The add-asset updates are compare-and-swap: no row is returned when the
// asset is already present in either set.

const QAddInputAsset = `--sql 072e51d1-10c6-4ef8-88be-6f53b2fa8695
update processing_requests
set input_assets_ids = array_append(input_assets_ids, $2::uuid),
    updated_at = now()
where id = $1::uuid
  and not ($2::uuid = any(input_assets_ids))
  and not ($2::uuid = any(output_assets_ids))
returning id::text, type, status, user_id::text, project_id::text,
          input_assets_ids::text[], output_assets_ids::text[], message, created_at, updated_at;
`

const QAddOutputAsset = `--sql 76bc5115-a971-4a4d-a3a4-a44d67fb2d2a
update processing_requests
set output_assets_ids = array_append(output_assets_ids, $2::uuid),
    updated_at = now()
where id = $1::uuid
  and not ($2::uuid = any(input_assets_ids))
  and not ($2::uuid = any(output_assets_ids))
returning id::text, type, status, user_id::text, project_id::text,
          input_assets_ids::text[], output_assets_ids::text[], message, created_at, updated_at;
`
